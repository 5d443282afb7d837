package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/sellerhub-backend/internal/catalog"
	pkgerrors "github.com/angelmondragon/sellerhub-backend/pkg/errors"
)

// cascade applies one delete or restore across the rule table. Every entity
// id is flipped at most once per run, which keeps the two lockstep rules
// between options and SKUs from looping.
type cascade struct {
	repo    *catalog.Repository
	actor   uuid.UUID
	deleted bool

	visited map[Entity]map[uuid.UUID]struct{}
	flipped map[Entity]int64
}

func newCascade(repo *catalog.Repository, actor uuid.UUID, deleted bool) *cascade {
	return &cascade{
		repo:    repo,
		actor:   actor,
		deleted: deleted,
		visited: make(map[Entity]map[uuid.UUID]struct{}),
		flipped: make(map[Entity]int64),
	}
}

func (c *cascade) apply(ctx context.Context, entity Entity, ids []uuid.UUID) error {
	fresh := c.visit(entity, ids)
	if len(fresh) == 0 {
		return nil
	}
	if err := c.flip(ctx, entity, fresh); err != nil {
		return err
	}

	for _, rule := range RulesFrom(entity) {
		targets, err := c.targets(ctx, rule, fresh)
		if err != nil {
			return err
		}
		switch rule.Kind {
		case KindLockstep:
			if err := c.apply(ctx, rule.Target, targets); err != nil {
				return err
			}
		case KindRollup:
			if err := c.rollup(ctx, rule.Target, targets); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *cascade) visit(entity Entity, ids []uuid.UUID) []uuid.UUID {
	seen, ok := c.visited[entity]
	if !ok {
		seen = make(map[uuid.UUID]struct{})
		c.visited[entity] = seen
	}
	var fresh []uuid.UUID
	for _, id := range ids {
		if _, done := seen[id]; done {
			continue
		}
		seen[id] = struct{}{}
		fresh = append(fresh, id)
	}
	return fresh
}

func (c *cascade) flip(ctx context.Context, entity Entity, ids []uuid.UUID) error {
	var (
		rows int64
		err  error
	)
	switch entity {
	case EntityProduct:
		rows, err = c.repo.Products.SetDeleted(ctx, ids, c.deleted, c.actor)
	case EntityVariant:
		rows, err = c.repo.Variants.SetDeleted(ctx, ids, c.deleted, c.actor)
	case EntityOption:
		rows, err = c.repo.Options.SetDeleted(ctx, ids, c.deleted, c.actor)
	case EntitySKU:
		rows, err = c.repo.SKUs.SetDeleted(ctx, ids, c.deleted, c.actor)
	default:
		return fmt.Errorf("unknown lifecycle entity %q", entity)
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("db: flip %s", entity))
	}
	c.flipped[entity] += rows
	return nil
}

func (c *cascade) targets(ctx context.Context, rule Rule, ids []uuid.UUID) ([]uuid.UUID, error) {
	var (
		out []uuid.UUID
		err error
	)
	switch {
	case rule.Source == EntitySKU && rule.Target == EntityOption:
		options, e := c.repo.OptionsBySKUs(ctx, ids)
		err = e
		for _, o := range options {
			out = append(out, o.ID)
		}
	case rule.Source == EntityOption && rule.Target == EntitySKU:
		options, e := c.repo.Options.FindByIDs(ctx, ids)
		err = e
		for _, o := range options {
			out = append(out, o.SKUID)
		}
	case rule.Source == EntityVariant && rule.Target == EntityOption:
		options, e := c.repo.OptionsForVariants(ctx, ids)
		err = e
		for _, o := range options {
			out = append(out, o.ID)
		}
	case rule.Source == EntityOption && rule.Target == EntityVariant:
		out, err = c.repo.VariantsForOptions(ctx, ids)
	default:
		return nil, fmt.Errorf("no resolver for %s -> %s", rule.Source, rule.Target)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("db: resolve %s for %s", rule.Target, rule.Source))
	}
	return out, nil
}

// rollup only handles variants, the single rollup target in the table.
func (c *cascade) rollup(ctx context.Context, entity Entity, ids []uuid.UUID) error {
	if entity != EntityVariant {
		return fmt.Errorf("rollup unsupported for %q", entity)
	}
	for _, id := range c.visit(entity, ids) {
		active, err := c.repo.CountActiveOptions(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: count active options")
		}
		rows, err := c.repo.Variants.SetDeleted(ctx, []uuid.UUID{id}, active == 0, c.actor)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: roll up variant")
		}
		c.flipped[EntityVariant] += rows
	}
	return nil
}

func (c *cascade) action() string {
	if c.deleted {
		return "delete"
	}
	return "restore"
}

func stampFields(deleted bool, actor uuid.UUID) map[string]any {
	return map[string]any{
		"is_deleted": deleted,
		"updated_by": actor,
		"updated_at": time.Now().UTC(),
	}
}
