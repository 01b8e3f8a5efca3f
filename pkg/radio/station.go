package radio

import (
	"fmt"
	"os"
	"strconv"

	yaml "gopkg.in/yaml.v2"
)

// Station is a named stream URL.
type Station struct {
	Name string `yaml:"name" json:"name"`
	URL  string `yaml:"url" json:"url"`
}

// WellKnownStations is the station list a Controller starts with.
var WellKnownStations = []Station{
	{Name: "Soma FM", URL: "http://ice3.somafm.com/groovesalad-64-aac"},
	{Name: "Soma FM", URL: "http://ice3.somafm.com/secretagent-64-aac"},
	{Name: "University of Calgary", URL: "http://stream.cjsw.com:80/cjsw.ogg"},
	{Name: "Playtrance.com", URL: "http://live.playtrance.com:8000/playtrance-livetech.aac"},
}

// Identifier selects a station either directly or by position in the
// controller's station list.
type Identifier struct {
	station Station
	index   int
	byIndex bool
}

// ByStation identifies a concrete station.
func ByStation(s Station) Identifier {
	return Identifier{station: s}
}

// ByIndex identifies the i-th entry of the station list.
func ByIndex(i int) Identifier {
	return Identifier{index: i, byIndex: true}
}

// Resolve returns the station the identifier refers to.
func (id Identifier) Resolve(stations []Station) (Station, error) {
	if !id.byIndex {
		if id.station.URL == "" {
			return Station{}, fmt.Errorf("station %q has no URL", id.station.Name)
		}
		return id.station, nil
	}

	if id.index < 0 || id.index >= len(stations) {
		return Station{}, &OutOfRangeError{Index: id.index, Len: len(stations)}
	}
	return stations[id.index], nil
}

func (id Identifier) String() string {
	if id.byIndex {
		return "#" + strconv.Itoa(id.index)
	}
	return id.station.Name + " <" + id.station.URL + ">"
}

type stationFile struct {
	Stations []Station `yaml:"stations"`
}

// LoadStations reads a YAML station list:
//
//	stations:
//	  - name: Soma FM
//	    url: http://ice3.somafm.com/groovesalad-64-aac
func LoadStations(path string) ([]Station, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read stations file %s: %w", path, err)
	}

	var f stationFile
	if err := yaml.UnmarshalStrict(buf, &f); err != nil {
		return nil, fmt.Errorf("failed to parse stations file %s: %w", path, err)
	}

	for i, s := range f.Stations {
		if s.URL == "" {
			return nil, fmt.Errorf("stations file %s: entry %d has no url", path, i)
		}
	}

	return f.Stations, nil
}
