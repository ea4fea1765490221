package handlers

import (
	"go.uber.org/zap"

	"dinehall-order-engine/internal/config"
	"dinehall-order-engine/internal/engine"
	"dinehall-order-engine/internal/storage"
)

type Handler struct {
	Engine  *engine.Engine
	Logger  *zap.Logger
	Config  config.Config
	Archive *storage.Archive
}
