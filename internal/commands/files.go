package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"affiliate_sheets/internal/affiliate"
)

func readListings(path string) ([]affiliate.Listing, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read listings: %w", err)
	}
	var listings []affiliate.Listing
	if err := json.Unmarshal(data, &listings); err != nil {
		return nil, fmt.Errorf("failed to decode listings from %s: %w", path, err)
	}
	return listings, nil
}

func writeListings(path string, listings []affiliate.Listing) error {
	if listings == nil {
		listings = []affiliate.Listing{}
	}
	data, err := json.MarshalIndent(listings, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode listings: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write listings: %w", err)
	}
	return nil
}
