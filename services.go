package supasoka

import "github.com/ghettodevelopers/Supasoka-backend-sub002/core"

type Config = core.Config

type TransportConfig = core.TransportConfig
type SessionConfig = core.SessionConfig
type RealtimeConfig = core.RealtimeConfig
type ReconcileConfig = core.ReconcileConfig
type CatalogConfig = core.CatalogConfig
type StoreConfig = core.StoreConfig

type Principal = core.Principal
type SessionSnapshot = core.SessionSnapshot
type SessionEvent = core.SessionEvent
type SessionHook = core.SessionHook
type SessionHookFunc = core.SessionHookFunc

type ErrorKind = core.ErrorKind

var (
	Classify    = core.Classify
	StatusCode  = core.StatusCode
	UserMessage = core.UserMessage
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}
