package main

import (
	"fmt"
	"image"
	"image/color"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/kass/go-aqi-viz/pkg/geo"
	"github.com/kass/go-aqi-viz/pkg/imaging"
	"github.com/kass/go-aqi-viz/pkg/models"
	"github.com/kass/go-aqi-viz/pkg/rtree"
	"github.com/kass/go-aqi-viz/pkg/viz"
)

func aqi(v int) *int { return &v }

func main() {
	// A handful of stations around northern Taiwan
	dir := models.Directory{
		FetchedAt: time.Now(),
		Stations: []models.Station{
			{Name: "基隆", Location: models.Location{Lat: 25.129167, Lon: 121.760056}, AQI: aqi(35)},
			{Name: "中山", Location: models.Location{Lat: 25.062361, Lon: 121.526528}, AQI: aqi(48)},
			{Name: "松山", Location: models.Location{Lat: 25.050000, Lon: 121.578611}, AQI: aqi(52)},
			{Name: "板橋", Location: models.Location{Lat: 25.012972, Lon: 121.458667}},
			{Name: "桃園", Location: models.Location{Lat: 24.994789, Lon: 121.304300}, AQI: aqi(61)},
			{Name: "新竹", Location: models.Location{Lat: 24.805619, Lon: 120.972075}, AQI: aqi(57)},
			{Name: "臺中", Location: models.Location{Lat: 24.151958, Lon: 120.641092}, AQI: aqi(88)},
		},
	}

	// Example 1: nearest station to Taipei 101 with the linear resolver
	fmt.Println("=== Nearest station to Taipei 101 ===")
	taipei101 := models.Location{Lat: 25.0330, Lon: 121.5654}

	nearest, err := geo.ResolveNearest(taipei101, dir.Stations)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("%s: AQI %s, %.2f km away\n", nearest.Station.Name, reading(nearest.Station), nearest.DistanceKm)

	// Example 2: stations within 20km using the index
	fmt.Println("\n=== Stations within 20km of Taipei 101 ===")
	index := rtree.New(dir)

	hits, err := index.QueryRadius(taipei101, 20)
	if err != nil {
		log.Fatal(err)
	}
	for _, h := range hits {
		fmt.Printf("  - %s: %.1f km, AQI %s\n", h.Station.Name, h.DistanceKm, reading(h.Station))
	}

	// Example 3: the three nearest stations to Hsinchu Science Park
	fmt.Println("\n=== 3 nearest stations to Hsinchu Science Park ===")
	park := models.Location{Lat: 24.7810, Lon: 121.0000}

	hits, err = index.NearestNeighbors(park, 3)
	if err != nil {
		log.Fatal(err)
	}
	for i, h := range hits {
		fmt.Printf("  %d. %s: %.1f km away\n", i+1, h.Station.Name, h.DistanceKm)
	}

	// Example 4: snapshot round trip
	fmt.Println("\n=== Saving snapshot ===")
	path := filepath.Join(os.TempDir(), "stations.gob")
	if err := rtree.SaveSnapshot(path, dir); err != nil {
		log.Fatal(err)
	}
	loaded, err := rtree.LoadFromFile(path)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Reloaded index with %d stations from %s\n", loaded.Count(), path)

	// Example 5: style for a bright sky-blue picture
	fmt.Println("\n=== Visualization for a bright image ===")
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{R: 120, G: 220, B: 255, A: 255})
		}
	}

	fp := imaging.NewExtractor(imaging.Options{}).ExtractImage(img)
	selector := viz.NewSeededSelector(viz.DefaultTable(), 1)
	decision := selector.Decide(fp)
	fmt.Printf("brightness %.2f, contrast %.2f, saturation %.2f\n", fp.Brightness, fp.Contrast, fp.Saturation)
	fmt.Printf("style %s (%s), random fallback: %v\n", viz.DisplayName(decision.Style), viz.Template(decision.Style), decision.Fallback)
}

func reading(st models.Station) string {
	if !st.HasReading() {
		return "n/a"
	}
	return fmt.Sprint(*st.AQI)
}
