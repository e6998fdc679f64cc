package archive

type queries struct {
	schema  []string
	insert  string
	history string
}

var dialects = map[string]queries{
	DriverPostgres: {
		schema: []string{
			`CREATE EXTENSION IF NOT EXISTS postgis;`,
			`CREATE TABLE IF NOT EXISTS aqi_readings (
				id           BIGSERIAL PRIMARY KEY,
				station      TEXT NOT NULL,
				county       TEXT NOT NULL DEFAULT '',
				aqi          INTEGER,
				status       TEXT NOT NULL DEFAULT '',
				publish_time TEXT NOT NULL DEFAULT '',
				location     GEOMETRY(POINT, 4326) NOT NULL,
				fetched_at   TIMESTAMPTZ NOT NULL
			);`,
			`CREATE INDEX IF NOT EXISTS idx_aqi_readings_station ON aqi_readings (station, fetched_at DESC);`,
			`CREATE INDEX IF NOT EXISTS idx_aqi_readings_location ON aqi_readings USING GIST (location);`,
		},
		insert: `
			INSERT INTO aqi_readings (station, county, aqi, status, publish_time, location, fetched_at)
			VALUES ($1, $2, $3, $4, $5, ST_SetSRID(ST_MakePoint($6, $7), 4326), $8)
		`,
		history: `
			SELECT station, county, aqi, status, publish_time,
				ST_Y(location) AS lat, ST_X(location) AS lon, fetched_at
			FROM aqi_readings
			WHERE station = $1
			ORDER BY fetched_at DESC, id DESC
			LIMIT $2
		`,
	},
	DriverSQLite: {
		schema: []string{
			`CREATE TABLE IF NOT EXISTS aqi_readings (
				id           INTEGER PRIMARY KEY AUTOINCREMENT,
				station      TEXT NOT NULL,
				county       TEXT NOT NULL DEFAULT '',
				aqi          INTEGER,
				status       TEXT NOT NULL DEFAULT '',
				publish_time TEXT NOT NULL DEFAULT '',
				lon          REAL NOT NULL,
				lat          REAL NOT NULL,
				fetched_at   TIMESTAMP NOT NULL
			);`,
			`CREATE INDEX IF NOT EXISTS idx_aqi_readings_station ON aqi_readings (station, fetched_at);`,
		},
		insert: `
			INSERT INTO aqi_readings (station, county, aqi, status, publish_time, lon, lat, fetched_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`,
		history: `
			SELECT station, county, aqi, status, publish_time, lat, lon, fetched_at
			FROM aqi_readings
			WHERE station = ?
			ORDER BY fetched_at DESC, id DESC
			LIMIT ?
		`,
	},
}
