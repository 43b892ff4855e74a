package worldscene

import (
	"errors"
	"fmt"

	"github.com/annel0/commoncore/internal/gamestate"
	"github.com/annel0/commoncore/internal/restorable"
	"github.com/annel0/commoncore/internal/scene"
)

func (c *Controller) restoreLocalObjects(store *gamestate.Store, rep *Report) {
	objects, ok := store.LocalObjects(c.graph.Name())
	if !ok {
		c.log.Debug("📭 Нет локальных данных для сцены %s", c.graph.Name())
		return
	}
	for _, name := range objects.Keys() {
		c.guard(rep, name, objects[name], func() error {
			return c.restoreLocal(name, objects[name], rep)
		})
	}
}

func (c *Controller) restoreLocal(name string, rec *restorable.Record, rep *Report) error {
	if rec == nil {
		return restorable.ErrNilRecord
	}

	switch rec.Kind {
	case restorable.KindDynamic:
		node, found := c.graph.FindByName(name)
		if !found {
			spawned, err := c.spawn(name, rec.FormID, restorable.KindDynamic)
			if err != nil {
				return err
			}
			if err := c.apply(spawned, rec); err != nil {
				return err
			}
			rep.add(name, rec.Kind, OutcomeSpawned, nil)
			c.opts.Metrics.EntitySpawned(rec.Kind.String())
			return nil
		}
		if err := c.apply(node, rec); err != nil {
			return err
		}

	case restorable.KindBlank:
		node, found := c.graph.FindByName(name)
		if !found {
			return fmt.Errorf("%w: %s", ErrObjectNotFound, name)
		}
		if err := c.apply(node, rec); err != nil {
			return err
		}

	default:
		return fmt.Errorf("%w: %s в локальных данных", restorable.ErrKindMismatch, rec.Kind)
	}

	rep.add(name, rec.Kind, OutcomeRestored, nil)
	c.opts.Metrics.EntityRestored(rec.Kind.String())
	return nil
}

// restoreMotileObjects создаёт заново мигрирующие объекты, принадлежащие этой сцене.
// С живыми объектами они никогда не сопоставляются.
func (c *Controller) restoreMotileObjects(store *gamestate.Store, rep *Report) {
	current := c.graph.Name()
	objects := store.MotileObjects()
	for _, name := range objects.Keys() {
		rec := objects[name]
		if rec == nil || rec.Scene != current {
			continue
		}
		c.guard(rep, name, rec, func() error {
			if rec.Kind != restorable.KindMotile {
				return fmt.Errorf("%w: %s в общем пуле", restorable.ErrKindMismatch, rec.Kind)
			}
			node, err := c.spawn(name, rec.FormID, restorable.KindMotile)
			if err != nil {
				return err
			}
			if err := c.apply(node, rec); err != nil {
				return err
			}
			rep.add(name, rec.Kind, OutcomeSpawned, nil)
			c.opts.Metrics.EntitySpawned(rec.Kind.String())
			return nil
		})
	}
}

// restorePlayer согласует игрока-одиночку с сохранённой записью и типом перехода
func (c *Controller) restorePlayer(store *gamestate.Store, meta *MetaState, rep *Report) {
	name := c.opts.PlayerName
	rec := store.Player()

	c.guard(rep, name, rec, func() error {
		player, existed := c.findPlayer()

		if existed {
			// без записи игрока существующий объект просто размещается
			if rec != nil {
				c.log.Warn("⚠️ Игрок уже существует в сцене %s", c.graph.Name())
				c.warn(rep, player.Name(), restorable.KindPlayer, ErrDuplicatePlayer)
			}
		} else {
			spawned, err := c.spawn(name, c.opts.PlayerFormID, restorable.KindPlayer)
			if err != nil {
				return err
			}
			player = spawned
			rep.add(name, restorable.KindPlayer, OutcomeSpawned, nil)
			c.opts.Metrics.EntitySpawned(restorable.KindPlayer.String())
		}

		if rec == nil {
			c.log.Info("ℹ️ Нет сохранённых данных игрока")
			c.warn(rep, player.Name(), restorable.KindPlayer, ErrNoPlayerData)
			c.placePlayer(player, meta, rep)
			return nil
		}

		if meta.TransitionType == TransitionLoadGame {
			if err := c.apply(player, rec); err != nil {
				return err
			}
			rep.add(player.Name(), restorable.KindPlayer, OutcomeRestored, nil)
			c.opts.Metrics.EntityRestored(restorable.KindPlayer.String())
			return nil
		}

		c.placePlayer(player, meta, rep)
		return nil
	})
}

// findPlayer ищет живого игрока по тегу, затем по имени
func (c *Controller) findPlayer() (*scene.Node, bool) {
	if n, ok := c.graph.FindByTag(c.opts.PlayerTag); ok {
		return n, true
	}
	return c.graph.FindByName(c.opts.PlayerName)
}

func (c *Controller) placePlayer(player *scene.Node, meta *MetaState, rep *Report) {
	res, err := ResolveIntent(c.graph, meta.PlayerIntent, c.opts.DefaultSpawn)
	if err != nil {
		c.log.Warn("⚠️ Намерение игрока: %v", err)
		c.warn(rep, player.Name(), restorable.KindPlayer, err)
	}
	res.Apply(player)
	c.log.Debug("🧭 Игрок размещён: %s %s", res.Placement, res.Source)
}

// spawn создаёт объект из шаблона и гарантирует нужный вариант компонента
func (c *Controller) spawn(name, formID string, kind restorable.Kind) (*scene.Node, error) {
	form, ok := c.forms.Lookup(formID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTemplateNotFound, formID)
	}
	node, err := c.graph.Spawn(form, name)
	if err != nil {
		return nil, err
	}
	if rc, ok := node.Restorable(); !ok || rc.Kind() != kind {
		if err := node.Attach(kind, formID); err != nil {
			return nil, err
		}
	}
	return node, nil
}

// apply восстанавливает запись на компонент объекта, проверяя вариант
func (c *Controller) apply(node *scene.Node, rec *restorable.Record) error {
	rc, ok := node.Restorable()
	if !ok {
		return fmt.Errorf("%w: %s", ErrMissingComponent, node.Name())
	}
	if rc.Kind() != rec.Kind {
		return fmt.Errorf("%w: %s ожидает %s, у объекта %s", restorable.ErrKindMismatch, node.Name(), rec.Kind, rc.Kind())
	}
	return rc.Restore(rec)
}

// guard выполняет обработку одной записи; ошибки и паники попадают в отчёт
func (c *Controller) guard(rep *Report, name string, rec *restorable.Record, fn func() error) {
	kind := restorable.KindUnknown
	if rec != nil {
		kind = rec.Kind
	}

	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%w: %v", ErrPanic, r)
			}
		}()
		err = fn()
	}()

	if err == nil {
		return
	}
	if errors.Is(err, ErrTemplateNotFound) {
		c.log.Warn("⚠️ Объект %s пропущен: %v", name, err)
	} else {
		c.log.Error("❌ Не удалось восстановить объект %s: %v", name, err)
	}
	c.skip(rep, name, kind, err)
}
