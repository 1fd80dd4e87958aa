package common

import (
	"context"
	"fmt"
	"os"

	"ledger-hub-go/internal/database"

	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

// FederationSeed describes one federation in the federations.yaml seed file
// consumed at hub setup.
type FederationSeed struct {
	Name   string   `yaml:"name"`
	Assets []string `yaml:"assets,omitempty"`
	Places []string `yaml:"places,omitempty"`
}

type federationSeedFile struct {
	Federations []FederationSeed `yaml:"federations"`
}

// LoadFederationSeeds parses a federations.yaml file.
func LoadFederationSeeds(path string) ([]FederationSeed, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read federation seed file: %w", err)
	}
	var file federationSeedFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("unable to parse federation seed file: %w", err)
	}
	return file.Federations, nil
}

// SeedFederations creates the listed federations and their memberships.
// Asset and place entries reference ids of records created beforehand.
func SeedFederations(ctx context.Context, db *database.Service, seeds []FederationSeed) error {
	for _, seed := range seeds {
		fed, err := db.CreateFederation(ctx, seed.Name)
		if err != nil {
			return err
		}
		for _, assetId := range seed.Assets {
			if err := db.AddAssetToFederation(ctx, fed.Id, assetId); err != nil {
				return err
			}
		}
		for _, placeId := range seed.Places {
			if err := db.AddPlaceToFederation(ctx, fed.Id, placeId); err != nil {
				return err
			}
		}
		zap.L().Info("Federation seeded",
			zap.String("federation_id", fed.Id),
			zap.String("name", fed.Name),
			zap.Int("assets", len(seed.Assets)),
			zap.Int("places", len(seed.Places)))
	}
	return nil
}
