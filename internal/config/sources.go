package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Source kinds describe how a table's rows become chart data.
const (
	KindMarkers = "markers" // marker<N> columns grouped into series
	KindNMEA    = "nmea"    // one NMEA sentence per row
	KindColumns = "columns" // plain numeric columns
)

// Source read modes.
const (
	ModeLatest   = "latest"   // one request for the newest rows
	ModePaginate = "paginate" // page through the whole table
)

// Source describes one table of the tabular store.
type Source struct {
	Name         string   `yaml:"name"`
	Table        string   `yaml:"table"`
	Shape        string   `yaml:"shape"`                // fragmented | instant
	TimeField    string   `yaml:"time_field,omitempty"` // instant shape only
	OrderField   string   `yaml:"order_field"`
	Descending   bool     `yaml:"descending"`
	Mode         string   `yaml:"mode"`
	Limit        int      `yaml:"limit,omitempty"`
	Kind         string   `yaml:"kind"`
	SeriesPrefix string   `yaml:"series_prefix,omitempty"`
	DataField    string   `yaml:"data_field,omitempty"`
	Fields       []string `yaml:"fields,omitempty"`
}

// Order renders the PostgREST order expression, e.g. "id.desc".
func (s Source) Order() string {
	if s.Descending {
		return s.OrderField + ".desc"
	}
	return s.OrderField + ".asc"
}

// Group aligns several sources on one time axis.
type Group struct {
	Name    string   `yaml:"name"`
	Sources []string `yaml:"sources"`
	Fields  []string `yaml:"fields"`
	Window  int      `yaml:"window,omitempty"`
}

// Catalog lists the configured sources and groups.
type Catalog struct {
	Sources []Source `yaml:"sources"`
	Groups  []Group  `yaml:"groups,omitempty"`
}

// LoadCatalog reads a YAML catalog. An empty path returns DefaultCatalog.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading sources file: %w", err)
	}

	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("parsing sources file: %w", err)
	}
	cat.applyDefaults()
	if err := cat.Validate(); err != nil {
		return nil, err
	}
	return &cat, nil
}

// DefaultCatalog mirrors the tables of the monitoring deployment.
func DefaultCatalog() *Catalog {
	cat := &Catalog{
		Sources: []Source{
			{Name: "ku", Table: "ku", Shape: "fragmented", OrderField: "id", Descending: true, Mode: ModeLatest, Limit: 20, Kind: KindMarkers},
			{Name: "ka", Table: "ka", Shape: "fragmented", OrderField: "id", Descending: true, Mode: ModeLatest, Limit: 20, Kind: KindMarkers},
			{
				Name: "distro", Table: "distro", Shape: "instant", TimeField: "inserted_at",
				OrderField: "inserted_at", Descending: true, Mode: ModeLatest, Limit: 10, Kind: KindColumns,
				Fields: []string{"rain_intensity", "rain_amt", "rain_amt_acc", "radar_reflect", "num_of_particles", "kinetic_energy", "batt"},
			},
			{
				Name: "temp_humid", Table: "temp_humid", Shape: "instant", TimeField: "timestamp",
				OrderField: "timestamp", Mode: ModePaginate, Kind: KindNMEA, DataField: "data",
				Fields: []string{"temp", "pressure", "humidity"},
			},
			{
				Name: "wind", Table: "wind", Shape: "instant", TimeField: "timestamp",
				OrderField: "timestamp", Mode: ModePaginate, Kind: KindNMEA, DataField: "data",
				Fields: []string{"wind_speed", "wind_direction"},
			},
			{
				Name: "solar", Table: "solar", Shape: "instant", TimeField: "timestamp",
				OrderField: "timestamp", Mode: ModePaginate, Kind: KindNMEA, DataField: "data",
				Fields: []string{"value1", "value2"},
			},
		},
		Groups: []Group{
			{
				Name:    "weather",
				Sources: []string{"temp_humid", "wind", "solar"},
				Fields:  []string{"temp", "pressure", "humidity", "wind_speed", "wind_direction", "value1", "value2"},
				Window:  10,
			},
		},
	}
	cat.applyDefaults()
	return cat
}

func (c *Catalog) applyDefaults() {
	for i := range c.Sources {
		s := &c.Sources[i]
		if s.Table == "" {
			s.Table = s.Name
		}
		if s.Mode == "" {
			s.Mode = ModePaginate
		}
		if s.OrderField == "" {
			s.OrderField = "id"
		}
		if s.Kind == KindMarkers && s.SeriesPrefix == "" {
			s.SeriesPrefix = "marker"
		}
		if s.Kind == KindNMEA && s.DataField == "" {
			s.DataField = "data"
		}
	}
	for i := range c.Groups {
		if c.Groups[i].Window <= 0 {
			c.Groups[i].Window = 10
		}
	}
}

// Validate checks names are unique and every source is fully described.
func (c *Catalog) Validate() error {
	if len(c.Sources) == 0 {
		return errors.New("sources file defines no sources")
	}

	seen := make(map[string]Source, len(c.Sources))
	for _, s := range c.Sources {
		if s.Name == "" {
			return errors.New("source name is required")
		}
		if _, dup := seen[s.Name]; dup {
			return fmt.Errorf("duplicate source %q", s.Name)
		}
		seen[s.Name] = s

		switch s.Shape {
		case "fragmented":
		case "instant":
			if s.TimeField == "" {
				return fmt.Errorf("source %q: time_field is required for instant rows", s.Name)
			}
		default:
			return fmt.Errorf("source %q: unknown shape %q", s.Name, s.Shape)
		}

		switch s.Mode {
		case ModePaginate:
		case ModeLatest:
			if s.Limit <= 0 {
				return fmt.Errorf("source %q: limit is required in latest mode", s.Name)
			}
		default:
			return fmt.Errorf("source %q: unknown mode %q", s.Name, s.Mode)
		}

		switch s.Kind {
		case KindMarkers:
		case KindNMEA, KindColumns:
			if len(s.Fields) == 0 {
				return fmt.Errorf("source %q: fields are required for kind %s", s.Name, s.Kind)
			}
		default:
			return fmt.Errorf("source %q: unknown kind %q", s.Name, s.Kind)
		}
	}

	groups := make(map[string]struct{}, len(c.Groups))
	for _, g := range c.Groups {
		if g.Name == "" {
			return errors.New("group name is required")
		}
		if _, dup := groups[g.Name]; dup {
			return fmt.Errorf("duplicate group %q", g.Name)
		}
		groups[g.Name] = struct{}{}
		if len(g.Sources) == 0 || len(g.Fields) == 0 {
			return fmt.Errorf("group %q: sources and fields are required", g.Name)
		}
		for _, name := range g.Sources {
			src, ok := seen[name]
			if !ok {
				return fmt.Errorf("group %q: unknown source %q", g.Name, name)
			}
			if src.Kind == KindMarkers {
				return fmt.Errorf("group %q: source %q has no metric fields", g.Name, name)
			}
		}
	}
	return nil
}

// Source looks up a source by name.
func (c *Catalog) Source(name string) (Source, bool) {
	for _, s := range c.Sources {
		if s.Name == name {
			return s, true
		}
	}
	return Source{}, false
}

// Group looks up a group by name.
func (c *Catalog) Group(name string) (Group, bool) {
	for _, g := range c.Groups {
		if g.Name == name {
			return g, true
		}
	}
	return Group{}, false
}
