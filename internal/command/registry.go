package command

import (
	"sort"
	"sync"

	"github.com/keshon/yomiage/internal/config"
)

type Registry struct {
	mu       sync.RWMutex
	commands map[string]Command
}

func NewRegistry() *Registry {
	return &Registry{commands: map[string]Command{}}
}

// RegisterCommand registers cmd, wrapped in mws, under its name and aliases.
func (r *Registry) RegisterCommand(cmd Command, mws ...Middleware) {
	cmd = ApplyMiddlewares(cmd, mws...)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands[cmd.Name()] = cmd
	for _, a := range cmd.Aliases() {
		r.commands[a] = cmd
	}
}

// GetCommand returns the command with the given name
func (r *Registry) GetCommand(name string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[name]
	return cmd, ok
}

// AllCommands returns every registered command once, ordered by category
// weight and then name.
func (r *Registry) AllCommands() []Command {
	r.mu.RLock()
	seen := map[string]bool{}
	list := make([]Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		if seen[cmd.Name()] {
			continue
		}
		list = append(list, cmd)
		seen[cmd.Name()] = true
	}
	r.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		wi, wj := config.CategoryWeights[list[i].Category()], config.CategoryWeights[list[j].Category()]
		if wi != wj {
			return wi < wj
		}
		return list[i].Name() < list[j].Name()
	})
	return list
}
