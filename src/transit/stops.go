package transit

import (
	"accessbus/src/types"
	_ "embed"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/agnivade/levenshtein"
)

//go:embed stops.csv
var defaultStops string

var ErrStopNotFound = errors.New("stop not found")

type Stop struct {
	ID        string
	Name      string
	Street    string
	Latitude  float64
	Longitude float64
}

func (s Stop) View() types.Stop {
	return types.Stop{ID: s.ID, Name: s.Name, Street: s.Street}
}

// Catalog is an immutable, in-memory stop list.
type Catalog struct {
	stops []Stop
	byID  map[string]int
}

func DefaultCatalog() *Catalog {
	c, err := LoadCatalog(strings.NewReader(defaultStops))
	if err != nil {
		panic(fmt.Sprintf("embedded stops: %s", err.Error()))
	}
	return c
}

// CatalogFromFile loads file, or the embedded Cambridge sample when file is empty.
func CatalogFromFile(file string) (*Catalog, error) {
	if file == "" {
		return DefaultCatalog(), nil
	}
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadCatalog(f)
}

// LoadCatalog reads "id,name,latitude,longitude,street" rows with a header.
// An empty street falls back to the stop name.
func LoadCatalog(r io.Reader) (*Catalog, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, err
	}
	cols := map[string]int{}
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, name := range []string{"id", "name", "latitude", "longitude", "street"} {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}

	c := &Catalog{byID: map[string]int{}}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		lat, err := strconv.ParseFloat(rec[cols["latitude"]], 64)
		if err != nil {
			return nil, fmt.Errorf("stop %s: bad latitude: %w", rec[cols["id"]], err)
		}
		lon, err := strconv.ParseFloat(rec[cols["longitude"]], 64)
		if err != nil {
			return nil, fmt.Errorf("stop %s: bad longitude: %w", rec[cols["id"]], err)
		}
		s := Stop{
			ID:        rec[cols["id"]],
			Name:      rec[cols["name"]],
			Street:    rec[cols["street"]],
			Latitude:  lat,
			Longitude: lon,
		}
		if s.Street == "" {
			s.Street = s.Name
		}
		c.byID[s.ID] = len(c.stops)
		c.stops = append(c.stops, s)
	}
	return c, nil
}

func (c *Catalog) Len() int {
	return len(c.stops)
}

func (c *Catalog) Get(id string) (Stop, error) {
	i, ok := c.byID[id]
	if !ok {
		return Stop{}, ErrStopNotFound
	}
	return c.stops[i], nil
}

// Autocomplete ranks stops by how closely the first len(input) characters of
// their name match input, case-insensitively.
func (c *Catalog) Autocomplete(input string, limit int) []types.Stop {
	q := strings.ToLower(strings.TrimSpace(input))
	if q == "" || limit <= 0 {
		return []types.Stop{}
	}
	type scored struct {
		idx   int
		score float64
	}
	ranked := make([]scored, 0, len(c.stops))
	for i, s := range c.stops {
		ranked = append(ranked, scored{idx: i, score: similarity(prefix(strings.ToLower(s.Name), len([]rune(q))), q)})
	}
	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].score > ranked[b].score
	})
	if limit > len(ranked) {
		limit = len(ranked)
	}
	out := make([]types.Stop, 0, limit)
	for _, r := range ranked[:limit] {
		out = append(out, c.stops[r.idx].View())
	}
	return out
}

func prefix(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// similarity is 1 - edit distance / longer length, in [0, 1].
func similarity(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}
