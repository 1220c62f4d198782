package sink

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/pterm/pterm"

	"github.com/tinoosan/seedstat/internal/data"
)

// Console renders each batch as a table per measurement.
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

func NewConsole(w io.Writer) *Console { return &Console{w: w} }

func (c *Console) Write(_ context.Context, points []data.Point) error {
	byMeasurement := map[string][]data.Point{}
	var names []string
	for _, p := range points {
		if _, ok := byMeasurement[p.Measurement]; !ok {
			names = append(names, p.Measurement)
		}
		byMeasurement[p.Measurement] = append(byMeasurement[p.Measurement], p)
	}
	sort.Strings(names)

	var sb strings.Builder
	for _, name := range names {
		out, err := pterm.DefaultTable.WithHasHeader().WithData(table(byMeasurement[name])).Srender()
		if err != nil {
			return err
		}
		sb.WriteString(pterm.DefaultSection.Sprint(name))
		sb.WriteString(out)
		sb.WriteString("\n")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := io.WriteString(c.w, sb.String())
	return err
}

// table lays points out with tag columns first, then field columns, both
// sorted by key.
func table(points []data.Point) pterm.TableData {
	tagKeys := keys(points, func(p data.Point) []string { return mapKeys(p.Tags) })
	fieldKeys := keys(points, func(p data.Point) []string { return mapKeys(p.Fields) })

	header := append([]string{"time"}, tagKeys...)
	header = append(header, fieldKeys...)
	td := pterm.TableData{header}
	for _, p := range points {
		row := []string{p.Time.Format("2006-01-02 15:04:05")}
		for _, k := range tagKeys {
			row = append(row, p.Tags[k])
		}
		for _, k := range fieldKeys {
			v, ok := p.Fields[k]
			if !ok {
				row = append(row, "-")
				continue
			}
			row = append(row, fmt.Sprint(v))
		}
		td = append(td, row)
	}
	return td
}

func keys(points []data.Point, f func(data.Point) []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, p := range points {
		for _, k := range f(p) {
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
	}
	sort.Strings(out)
	return out
}

func mapKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func (c *Console) Close() error { return nil }
