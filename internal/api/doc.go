// Package api serves the HTTP interface.
//
// Routes:
//   - GET  /api/aqi               nearest station reading for latitude/longitude
//   - GET  /api/stations          the current station directory
//   - GET  /api/stations/nearby   stations within radius_km, nearest first
//   - POST /api/visualization     style for an uploaded image (multipart "image" + "aqi")
//   - POST /app-inventor          simplified visualization response
//   - GET  /api/styles            style catalogue and weights
//   - GET  /healthz               liveness
//   - GET  /metrics               Prometheus text exposition
//
// Every response carries CORS headers and an X-Request-ID. Errors use the
// envelope {status:"error", error:<kind>, message:<summary>}.
package api
