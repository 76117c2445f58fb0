// Package autoload initializes the global logger from the environment when
// blank-imported from main.
package autoload

import (
	configx "github.com/shoptalk-ai/shoptalk/pkg/config"
	logx "github.com/shoptalk-ai/shoptalk/pkg/logger"
)

func init() {
	cfg := configx.MustNew[logx.Config]("LOG")
	logx.Init(*cfg)
}
