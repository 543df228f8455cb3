package common

const (
	ComponentIndexer         = "indexer"
	ComponentProcessor       = "processor"
	ComponentTemplateManager = "template-manager"
	ComponentRPC             = "rpc"
	ComponentChainHead       = "chain-head"
	ComponentMetrics         = "metrics"
	ComponentHandler         = "handler"
)

var AllComponents = map[string]struct{}{
	ComponentIndexer:         {},
	ComponentProcessor:       {},
	ComponentTemplateManager: {},
	ComponentRPC:             {},
	ComponentChainHead:       {},
	ComponentMetrics:         {},
	ComponentHandler:         {},
}
