//go:build wireinject
// +build wireinject

package wire

import (
	"context"

	"github.com/google/wire"

	"github.com/sevigo/pixel-warden/internal/app"
)

func InitializeApp(ctx context.Context) (*app.App, func(), error) {
	wire.Build(AppSet)
	return &app.App{}, nil, nil
}

func InitializeToolkit(ctx context.Context) (*app.Toolkit, func(), error) {
	wire.Build(ToolkitSet)
	return &app.Toolkit{}, nil, nil
}
