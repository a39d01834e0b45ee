// Package baseline derives the reference metrics from the logs of the real
// path being replicated, and caches them next to those logs.
package baseline

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/Centaurus99/Spearmint/internal/aggregate"
	"github.com/Centaurus99/Spearmint/internal/perf"
	"github.com/Centaurus99/Spearmint/internal/stats"
)

// ErrSchemeMissing means the cached baseline lacks a configured scheme.
var ErrSchemeMissing = errors.New("scheme missing from baseline")

// CacheFile is written into the replicate log directory once computed.
const CacheFile = "cali_data.json"

type cacheMetric struct {
	Tput    float64 `json:"tput"`
	Delay   float64 `json:"delay"`
	Samples int     `json:"samples,omitempty"`
}

// LoadOrCompute returns the baseline for schemes. An existing cache in dir
// is trusted as is; otherwise the per-run stats logs are aggregated and the
// result cached.
func LoadOrCompute(dir string, schemes []string) (aggregate.Table, error) {
	cache := filepath.Join(dir, CacheFile)
	if _, err := os.Stat(cache); err == nil {
		logrus.Infof("skip processing %s as %s already exists", dir, CacheFile)
		table, err := Load(cache)
		if err != nil {
			return nil, err
		}
		return restrict(table, schemes)
	}

	table, err := Compute(dir, schemes)
	if err != nil {
		return nil, err
	}
	if err := Save(cache, table); err != nil {
		return nil, err
	}
	return table, nil
}

var reRun = regexp.MustCompile(`_stats_run(\d+)\.log$`)

// Compute parses <scheme>_stats_run<N>.log for every scheme and takes the
// median over runs. Every scheme must yield at least one defined flow.
func Compute(dir string, schemes []string) (aggregate.Table, error) {
	var records []perf.Record
	for _, scheme := range schemes {
		paths, err := filepath.Glob(filepath.Join(dir, scheme+"_stats_run*.log"))
		if err != nil {
			return nil, err
		}
		if len(paths) == 0 {
			return nil, fmt.Errorf("no stats logs for %s in %s", scheme, dir)
		}
		for _, p := range paths {
			m := reRun.FindStringSubmatch(p)
			if m == nil {
				continue
			}
			run, _ := strconv.Atoi(m[1])
			data, err := os.ReadFile(p)
			if err != nil {
				return nil, fmt.Errorf("reading stats log: %w", err)
			}
			report := stats.ParseText(string(data))
			if len(report.Flows) == 0 {
				logrus.Warnf("%s: no complete flow block, skipping run", filepath.Base(p))
				continue
			}
			records = append(records, perf.Record{Scheme: scheme, Trial: run, Flows: report.Flows})
		}
	}

	expect := make([]aggregate.Key, len(schemes))
	for i, s := range schemes {
		expect[i] = aggregate.Key{Scheme: s, Flow: 1}
	}
	table := aggregate.Aggregate(records, expect...)
	for _, k := range table.Keys() {
		if !table[k].Defined() {
			return nil, fmt.Errorf("baseline for %s has no samples", k)
		}
	}
	return table, nil
}

// Load reads a cache file. Entries in the flat {"tput","delay"} layout are
// taken as flow 1.
func Load(path string) (aggregate.Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading baseline: %w", err)
	}
	var doc map[string]map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing baseline %s: %w", path, err)
	}

	table := aggregate.Table{}
	for scheme, entry := range doc {
		if _, flat := entry["tput"]; flat {
			var m cacheMetric
			raw, _ := json.Marshal(entry)
			if err := json.Unmarshal(raw, &m); err != nil {
				return nil, fmt.Errorf("parsing baseline %s: %w", scheme, err)
			}
			table[aggregate.Key{Scheme: scheme, Flow: 1}] = fromCache(m)
			continue
		}
		for flowKey, raw := range entry {
			flow, err := strconv.Atoi(flowKey)
			if err != nil || flow < 1 {
				return nil, fmt.Errorf("baseline %s: bad flow %q", scheme, flowKey)
			}
			var m cacheMetric
			if err := json.Unmarshal(raw, &m); err != nil {
				return nil, fmt.Errorf("parsing baseline %s flow %d: %w", scheme, flow, err)
			}
			table[aggregate.Key{Scheme: scheme, Flow: flow}] = fromCache(m)
		}
	}
	return table, nil
}

// Save writes table in the nested cache layout. Undefined metrics cannot be
// represented and are refused.
func Save(path string, table aggregate.Table) error {
	doc := map[string]map[string]cacheMetric{}
	for _, k := range table.Keys() {
		m := table[k]
		if !m.Defined() {
			return fmt.Errorf("refusing to cache undefined baseline for %s", k)
		}
		if doc[k.Scheme] == nil {
			doc[k.Scheme] = map[string]cacheMetric{}
		}
		doc[k.Scheme][strconv.Itoa(k.Flow)] = cacheMetric{Tput: m.Throughput, Delay: m.Delay, Samples: m.Samples}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling baseline: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing baseline: %w", err)
	}
	return nil
}

func restrict(table aggregate.Table, schemes []string) (aggregate.Table, error) {
	out := aggregate.Table{}
	for _, s := range schemes {
		found := false
		for k, m := range table {
			if k.Scheme == s {
				out[k] = m
				found = true
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: %s", ErrSchemeMissing, s)
		}
	}
	return out, nil
}

func fromCache(m cacheMetric) aggregate.Metric {
	return aggregate.Metric{Throughput: m.Tput, Delay: m.Delay, Samples: m.Samples}
}
