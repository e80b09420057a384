package handler

import (
	"talkroom/internal/app/chat"
	"talkroom/internal/app/store"
	"talkroom/internal/configs"
)

// AppDeps bundles the shared dependencies injected into every handler.
type AppDeps struct {
	Hub    *chat.Hub
	Store  *store.Store
	Config *configs.AppConfig
}
