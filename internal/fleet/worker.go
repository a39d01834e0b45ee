// Package fleet addresses the machines that run emulation trials and the
// ways a trial is executed on them.
package fleet

import (
	"fmt"
	"os"
	"regexp"
	"strconv"

	"github.com/Centaurus99/Spearmint/internal/config"
)

type Worker struct {
	Name    string
	Address string
	User    string
	Port    int
}

// Host is the ssh destination, user@address when a user is set.
func (w Worker) Host() string {
	if w.User == "" {
		return w.Address
	}
	return w.User + "@" + w.Address
}

func (w Worker) String() string {
	if w.Name != "" {
		return w.Name
	}
	return w.Address
}

var reIPv4 = regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`)

// LoadTable reads a VM listing in which every row carries an internal and an
// external address, and returns the internal ones in listing order.
func LoadTable(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading worker table: %w", err)
	}
	all := reIPv4.FindAllString(string(data), -1)
	ips := make([]string, 0, len(all)/2+1)
	for i := 0; i < len(all); i += 2 {
		ips = append(ips, all[i])
	}
	return ips, nil
}

// Resolve builds the worker list from the configured addresses, falling back
// to the worker table.
func Resolve(cfg *config.Config) ([]Worker, error) {
	w := cfg.Workers
	addrs := w.Addresses
	if len(addrs) == 0 && w.Table != "" {
		var err error
		addrs, err = LoadTable(w.Table)
		if err != nil {
			return nil, err
		}
	}
	workers := make([]Worker, len(addrs))
	for i, a := range addrs {
		workers[i] = Worker{
			Name:    "worker-" + strconv.Itoa(i+1),
			Address: a,
			User:    w.Username,
			Port:    w.SSHPort,
		}
	}
	return workers, nil
}
