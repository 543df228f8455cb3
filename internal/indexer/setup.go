package indexer

import (
	"fmt"

	"github.com/goran-ethernal/ChainHound/internal/logger"
	"github.com/goran-ethernal/ChainHound/pkg/config"
	"github.com/goran-ethernal/ChainHound/pkg/handler"
)

// LoadFromConfig creates the handler of every configured data source and block handler through
// the handler registry and loads it. Template settings are handed to every factory so that
// factory handlers can build the template handlers they register.
func (i *Indexer) LoadFromConfig(log *logger.Logger) error {
	templates := TemplateSettings(i.cfg)

	for _, name := range config.SortedKeys(i.cfg.DataSources) {
		ds := i.cfg.DataSources[name]

		h, err := handler.CreateEventHandler(handler.Settings{
			Name:          name,
			Type:          ds.Handler,
			Network:       ds.Network,
			ExecutionMode: handler.ExecutionMode(ds.ExecutionMode),
			ABI:           ds.ABI,
			Event:         ds.Event,
			Database:      i.cfg.Database,
			Templates:     templates,
		}, log)
		if err != nil {
			return fmt.Errorf("data_sources[%s]: %w", name, err)
		}

		if err := i.LoadEventHandler(h); err != nil {
			return fmt.Errorf("data_sources[%s]: %w", name, err)
		}
	}

	for _, name := range config.SortedKeys(i.cfg.BlockHandlers) {
		bh := i.cfg.BlockHandlers[name]

		h, err := handler.CreateBlockHandler(handler.Settings{
			Name:          name,
			Type:          bh.Handler,
			Network:       bh.Network,
			ExecutionMode: handler.ExecutionMode(bh.ExecutionMode),
			Database:      i.cfg.Database,
			Templates:     templates,
		}, log)
		if err != nil {
			return fmt.Errorf("block_handlers[%s]: %w", name, err)
		}

		if err := i.LoadBlockHandler(h); err != nil {
			return fmt.Errorf("block_handlers[%s]: %w", name, err)
		}
	}

	return nil
}

// TemplateSettings converts the templates section into handler settings keyed by template name.
func TemplateSettings(cfg *config.Config) map[string]handler.Settings {
	templates := make(map[string]handler.Settings, len(cfg.Templates))
	for name, tmpl := range cfg.Templates {
		templates[name] = handler.Settings{
			Name:          name,
			Type:          tmpl.Handler,
			Network:       tmpl.Network,
			ExecutionMode: handler.ExecutionMode(tmpl.ExecutionMode),
			ABI:           tmpl.ABI,
			Event:         tmpl.Event,
			Template:      true,
			Database:      cfg.Database,
		}
	}

	return templates
}
