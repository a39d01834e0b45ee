package result

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// PayloadFile is the name of a trial's raw performance payload.
const PayloadFile = "stats.log"

func CreateRunDir(baseDir string) (string, error) {
	runsDir := filepath.Join(baseDir, "runs")
	stamp := time.Now().UTC().Format("2006-01-02T15-04-05.000")
	runDir := filepath.Join(runsDir, stamp)
	runDir, err := filepath.Abs(runDir)
	if err != nil {
		return "", fmt.Errorf("resolving run dir: %w", err)
	}
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", fmt.Errorf("creating run dir: %w", err)
	}
	latest := filepath.Join(baseDir, "latest")
	os.Remove(latest)
	if err := os.Symlink(runDir, latest); err != nil {
		return "", fmt.Errorf("creating latest symlink: %w", err)
	}
	return runDir, nil
}

func TrialDir(runDir, scheme string, trial int) string {
	return filepath.Join(runDir, "trials", scheme, fmt.Sprintf("trial-%d", trial))
}

func WriteTrialMeta(trialDir string, meta *TrialMeta) error {
	if err := os.MkdirAll(trialDir, 0o755); err != nil {
		return fmt.Errorf("creating trial dir: %w", err)
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling meta: %w", err)
	}
	return os.WriteFile(filepath.Join(trialDir, "meta.json"), data, 0o644)
}

func ReadTrialMeta(path string) (*TrialMeta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading meta: %w", err)
	}
	var meta TrialMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parsing meta: %w", err)
	}
	return &meta, nil
}

// WritePayload stores the raw bytes a worker returned for a trial.
func WritePayload(trialDir string, payload []byte) error {
	if err := os.MkdirAll(trialDir, 0o755); err != nil {
		return fmt.Errorf("creating trial dir: %w", err)
	}
	return os.WriteFile(filepath.Join(trialDir, PayloadFile), payload, 0o644)
}

// ReadRun loads every trial meta under runDir, ordered by scheme then trial.
func ReadRun(runDir string) ([]*TrialMeta, error) {
	paths, err := filepath.Glob(filepath.Join(runDir, "trials", "*", "trial-*", "meta.json"))
	if err != nil {
		return nil, err
	}
	metas := make([]*TrialMeta, 0, len(paths))
	for _, p := range paths {
		m, err := ReadTrialMeta(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		metas = append(metas, m)
	}
	sort.Slice(metas, func(i, j int) bool {
		if metas[i].Scheme != metas[j].Scheme {
			return metas[i].Scheme < metas[j].Scheme
		}
		return metas[i].Trial < metas[j].Trial
	})
	return metas, nil
}
