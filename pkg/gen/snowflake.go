package gen

import (
	"fmt"

	"loyaltyhub/pkg/config"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
)

var Module = fx.Module("snowflake",
	fx.Provide(NewSnowflakeNode),
)

// NewSnowflakeNode returns the id generator for this process. Every process
// writing to the same database needs its own SNOWFLAKE.NODE.
func NewSnowflakeNode(cfg *config.Config) (*snowflake.Node, error) {
	node, err := snowflake.NewNode(cfg.Snowflake.Node)
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", cfg.Snowflake.Node, err)
	}
	return node, nil
}
