package config

import (
	_ "embed"
	"fmt"
	"os"

	"wagerledger/models"
	"wagerledger/payout"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

//go:embed house_edges.yaml
var defaultHouseEdges []byte

type gameEdgesFile struct {
	Default  string            `yaml:"default"`
	BetTypes map[string]string `yaml:"bet_types"`
}

// LoadHouseEdges reads the edge table from path, or the embedded default when path is empty
func LoadHouseEdges(path string) (*payout.EdgeTable, error) {
	data := defaultHouseEdges
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read house edge file %s: %w", path, err)
		}
	}
	return ParseHouseEdges(data)
}

// ParseHouseEdges decodes a YAML edge table keyed by game type
func ParseHouseEdges(data []byte) (*payout.EdgeTable, error) {
	var raw map[string]gameEdgesFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse house edge table: %w", err)
	}

	games := make(map[models.GameType]payout.GameEdges, len(raw))
	for game, entry := range raw {
		def, err := decimal.NewFromString(entry.Default)
		if err != nil {
			return nil, fmt.Errorf("game %s: invalid default edge %q: %w", game, entry.Default, err)
		}
		edges := payout.GameEdges{Default: def, BetTypes: make(map[string]decimal.Decimal, len(entry.BetTypes))}
		for betType, value := range entry.BetTypes {
			edge, err := decimal.NewFromString(value)
			if err != nil {
				return nil, fmt.Errorf("game %s bet type %s: invalid edge %q: %w", game, betType, value, err)
			}
			edges.BetTypes[betType] = edge
		}
		games[models.GameType(game)] = edges
	}
	return payout.NewEdgeTable(games)
}
