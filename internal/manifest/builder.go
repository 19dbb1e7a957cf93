package manifest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/lolmeida/kstack/internal/condition"
	"github.com/lolmeida/kstack/internal/defaults"
	"github.com/lolmeida/kstack/internal/model"
	"github.com/lolmeida/kstack/internal/store"
)

// Builder turns the records of a stack into one values document.
type Builder struct {
	store     store.ConfigStore
	resolver  *defaults.Resolver
	evaluator *condition.Evaluator
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithEvaluator replaces the default condition evaluator.
func WithEvaluator(e *condition.Evaluator) BuilderOption {
	return func(b *Builder) {
		b.evaluator = e
	}
}

// NewBuilder creates a builder. A nil resolver gets a fresh one over s.
func NewBuilder(s store.ConfigStore, r *defaults.Resolver, opts ...BuilderOption) *Builder {
	b := &Builder{store: s, resolver: r}
	for _, opt := range opts {
		opt(b)
	}
	if b.resolver == nil {
		b.resolver = defaults.NewResolver(s)
	}
	if b.evaluator == nil {
		b.evaluator = condition.Default()
	}
	return b
}

// Resolver returns the resolver the builder reads category defaults from.
func (b *Builder) Resolver() *defaults.Resolver {
	return b.resolver
}

// BuildStackValues builds the values document of a stack. Only a missing
// environment or stack is an error; empty lookups below the stack produce
// empty blocks.
func (b *Builder) BuildStackValues(ctx context.Context, environmentID int64, stackName string) (model.Document, error) {
	if environmentID == 0 {
		return nil, fmt.Errorf("%w: environment id is required", model.ErrBadRequest)
	}
	if strings.TrimSpace(stackName) == "" {
		return nil, fmt.Errorf("%w: stack name is required", model.ErrBadRequest)
	}

	env, err := b.store.GetEnvironment(ctx, environmentID)
	if err != nil {
		return nil, err
	}
	st, err := b.store.GetStack(ctx, env.ID, stackName)
	if err != nil {
		return nil, err
	}

	return b.Build(ctx, env, st)
}

// Build builds the document for an already resolved environment and stack.
func (b *Builder) Build(ctx context.Context, env *model.Environment, st *model.Stack) (model.Document, error) {
	namespace := Namespace(env.Name)
	doc := model.Document{
		"global": map[string]any{
			"namespace": namespace,
			"timezone":  Timezone,
		},
	}

	stackBlock := make(map[string]any, len(st.Config)+2)
	for k, v := range st.Config {
		if k == "enabled" || k == "apps" {
			continue
		}
		stackBlock[k] = DeepCopy(v)
	}
	stackBlock["enabled"] = st.Enabled

	apps, err := b.store.ListApps(ctx, st.ID)
	if err != nil {
		return nil, fmt.Errorf("list apps of stack %q: %w", st.Name, err)
	}
	sort.SliceStable(apps, func(i, j int) bool {
		if apps[i].DeploymentPriority != apps[j].DeploymentPriority {
			return apps[i].DeploymentPriority < apps[j].DeploymentPriority
		}
		return apps[i].Name < apps[j].Name
	})

	flags := make(map[string]any, len(apps))
	for _, app := range apps {
		flags[app.Name] = app.Enabled
	}
	stackBlock["apps"] = flags
	doc[StackKey(st.Name)] = stackBlock

	vars := map[string]any{
		"env":       env.Name,
		"stack":     st.Name,
		"namespace": namespace,
	}

	for _, app := range apps {
		if !app.Enabled {
			continue
		}
		block, err := b.buildApp(ctx, app, vars)
		if err != nil {
			return nil, fmt.Errorf("build app %q: %w", app.Name, err)
		}
		doc[app.Name] = block
	}

	return doc, nil
}

func (b *Builder) buildApp(ctx context.Context, app model.App, stackVars map[string]any) (map[string]any, error) {
	block := make(map[string]any)
	Overlay(block, app.DefaultConfig)

	block["image"] = map[string]any{
		"repository": app.DefaultImageRepository,
		"tag":        app.DefaultImageTag,
	}
	if app.DefaultPorts != nil {
		block["ports"] = DeepCopy(app.DefaultPorts)
	}
	if app.DefaultResources != nil {
		block["resources"] = DeepCopy(app.DefaultResources)
	}
	if app.HealthCheckPath != nil {
		block["healthCheckPath"] = *app.HealthCheckPath
	}
	if app.ReadinessCheckPath != nil {
		block["readinessCheckPath"] = *app.ReadinessCheckPath
	}

	if err := b.applyAuth(ctx, app, block); err != nil {
		return nil, err
	}

	entries, err := b.Entries(ctx, app)
	if err != nil {
		return nil, err
	}

	instances, err := b.store.ListManifestInstances(ctx, app.ID)
	if err != nil {
		return nil, fmt.Errorf("list manifest instances: %w", err)
	}
	disabled := make(map[model.ManifestType]bool)
	enabled := make(map[model.ManifestType][]model.ManifestInstance)
	for _, inst := range instances {
		if !inst.Enabled {
			disabled[inst.Kind] = true
			continue
		}
		enabled[inst.Kind] = append(enabled[inst.Kind], inst)
	}

	vars := make(map[string]any, len(stackVars)+1)
	for k, v := range stackVars {
		vars[k] = v
	}
	vars["app"] = app.Name

	for _, e := range entries {
		key := e.ManifestType.Key()
		if disabled[e.ManifestType] {
			delete(block, key)
			continue
		}
		if !e.Required && !b.evaluator.Evaluate(e.CreationCondition, block) {
			continue
		}

		sub, err := buildManifestBlock(e, block, vars)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		for _, inst := range enabled[e.ManifestType] {
			sub = applyInstance(sub, inst)
		}
		block[key] = sub
	}

	return block, nil
}

// Entries returns the manifest kinds of an App: category defaults with the
// App's own rows overlaid, sorted by creation priority.
func (b *Builder) Entries(ctx context.Context, app model.App) ([]Entry, error) {
	defs, err := b.resolver.DefaultsFor(ctx, app.Category)
	if err != nil {
		return nil, fmt.Errorf("resolve defaults for category %q: %w", app.Category, err)
	}
	rows, err := b.store.ListAppManifests(ctx, app.ID)
	if err != nil {
		return nil, fmt.Errorf("list app manifests: %w", err)
	}

	entries := make([]Entry, 0, len(defs)+len(rows))
	index := make(map[model.ManifestType]int, len(defs))
	for _, d := range defs {
		index[d.ManifestType] = len(entries)
		entries = append(entries, Entry{
			ManifestType:      d.ManifestType,
			Required:          d.Required,
			CreationPriority:  d.CreationPriority,
			CreationCondition: d.CreationCondition,
			DefaultConfig:     d.DefaultConfig,
		})
	}

	for _, row := range rows {
		i, ok := index[row.ManifestType]
		if !ok {
			index[row.ManifestType] = len(entries)
			entries = append(entries, Entry{
				ManifestType:      row.ManifestType,
				Required:          row.Required,
				CreationPriority:  row.CreationPriority,
				CreationCondition: row.CreationCondition,
				DefaultConfig:     row.DefaultConfig,
				TemplateOverrides: row.TemplateOverrides,
			})
			continue
		}
		e := &entries[i]
		e.Required = row.Required
		e.CreationPriority = row.CreationPriority
		e.CreationCondition = row.CreationCondition
		e.DefaultConfig = DeepMerge(e.DefaultConfig, row.DefaultConfig)
		e.TemplateOverrides = row.TemplateOverrides
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].CreationPriority != entries[j].CreationPriority {
			return entries[i].CreationPriority < entries[j].CreationPriority
		}
		return entries[i].ManifestType.Ordinal() < entries[j].ManifestType.Ordinal()
	})
	return entries, nil
}

// buildManifestBlock assembles one included sub-block: the entry's
// defaults, then the fixed table, then what the App itself configured for
// the kind (its toggle block and any block under the kind's own key), then
// the entry's template overrides.
func buildManifestBlock(e Entry, block map[string]any, vars map[string]any) (map[string]any, error) {
	sub := DeepMerge(map[string]any{"enabled": true}, e.DefaultConfig)

	if table, ok := FixedDefaults[e.ManifestType]; ok {
		filled, err := InterpolateMap(table, vars)
		if err != nil {
			return nil, err
		}
		sub = DeepMerge(sub, filled)
	}

	key := e.ManifestType.Key()
	if toggle, ok := ToggleBlocks[e.ManifestType]; ok && toggle != key {
		if m, ok := block[toggle].(map[string]any); ok {
			sub = DeepMerge(sub, m)
		}
	}
	if m, ok := block[key].(map[string]any); ok {
		sub = DeepMerge(sub, m)
	}

	sub = DeepMerge(sub, e.TemplateOverrides)
	sub["enabled"] = true
	return sub, nil
}

func applyInstance(sub map[string]any, inst model.ManifestInstance) map[string]any {
	overlay := make(map[string]any)
	if inst.MetadataName != "" {
		overlay["name"] = inst.MetadataName
	}
	if len(inst.MetadataLabels) > 0 {
		overlay["labels"] = DeepCopy(inst.MetadataLabels)
	}
	if inst.Component != "" {
		overlay["component"] = inst.Component
	}
	if len(inst.Annotations) > 0 {
		overlay["annotations"] = DeepCopy(inst.Annotations)
	}
	merged := DeepMerge(sub, overlay)
	merged = DeepMerge(merged, inst.Spec)
	merged["enabled"] = true
	return merged
}

// applyAuth merges the category's auth defaults under the App's own auth
// settings when auth is enabled.
func (b *Builder) applyAuth(ctx context.Context, app model.App, block map[string]any) error {
	if !b.evaluator.Evaluate(condition.AuthEnabled, block) {
		return nil
	}
	own, _ := block["auth"].(map[string]any)

	types, err := b.resolver.AuthTypesFor(ctx, app.Category)
	if err != nil {
		return fmt.Errorf("resolve auth types for category %q: %w", app.Category, err)
	}
	if len(types) == 0 {
		return nil
	}

	authType, _ := own["type"].(string)
	if authType == "" {
		authType = types[0]
	}

	base := map[string]any{"type": authType}
	cfg, err := b.resolver.AuthConfigFor(ctx, app.Category, authType)
	switch {
	case errors.Is(err, model.ErrNotFound):
	case err != nil:
		return err
	default:
		base = DeepMerge(base, cfg)
	}

	supported := make([]any, len(types))
	for i, t := range types {
		supported[i] = t
	}
	base["supportedTypes"] = supported

	block["auth"] = DeepMerge(base, own)
	return nil
}
