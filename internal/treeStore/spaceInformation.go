package treestore

import (
	"fmt"
	"os"

	"github.com/shirou/gopsutil/disk"
	"github.com/sirupsen/logrus"
)

func (c StoreConfig) check() error {
	if c.Path == "" {
		return fmt.Errorf("no storage path configured")
	}
	if err := os.MkdirAll(c.Path, 0o755); err != nil {
		return fmt.Errorf("could not create storage path %s: %w", c.Path, err)
	}
	if c.MinimumFreeSpace > 0 {
		usage, err := disk.Usage(c.Path)
		if err != nil {
			return fmt.Errorf("could not determine free space for %s: %w", c.Path, err)
		}
		freeGB := float64(usage.Free) / 1e9
		if freeGB < float64(c.MinimumFreeSpace) {
			return fmt.Errorf("not enough free space at %s: %.2f GB free, %d GB required", c.Path, freeGB, c.MinimumFreeSpace)
		}
	}
	return nil
}

// displayDiskUsage logs the disk usage of the storage path the way an
// operator would want to see it at startup.
func displayDiskUsage(path string) error {
	usage, err := disk.Usage(path)
	if err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"Path":       path,
		"Total (GB)": fmt.Sprintf("%.2f", float64(usage.Total)/1e9),
		"Used (GB)":  fmt.Sprintf("%.2f", float64(usage.Used)/1e9),
		"Free (GB)":  fmt.Sprintf("%.2f", float64(usage.Free)/1e9),
		"Used %":     fmt.Sprintf("%.1f", usage.UsedPercent),
	}).Info("Disk usage for tree storage")

	return nil
}
