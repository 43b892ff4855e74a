package worldscene

import (
	"context"
	"fmt"

	"github.com/annel0/commoncore/internal/eventbus"
	"github.com/annel0/commoncore/internal/forms"
	"github.com/annel0/commoncore/internal/gamestate"
	"github.com/annel0/commoncore/internal/logging"
	"github.com/annel0/commoncore/internal/metrics"
	"github.com/annel0/commoncore/internal/observability"
	"github.com/annel0/commoncore/internal/restorable"
	"github.com/annel0/commoncore/internal/scene"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SceneGraph живая сцена, с которой работает контроллер
type SceneGraph interface {
	Name() string
	FindByName(name string) (*scene.Node, bool)
	FindByTag(tag string) (*scene.Node, bool)
	Restorables() []restorable.Component
	Spawn(form *forms.Form, name string) (*scene.Node, error)
}

// FormLoader загрузчик шаблонов объектов
type FormLoader interface {
	Lookup(formID string) (*forms.Form, bool)
}

// Options настройки контроллера сцены
type Options struct {
	PlayerFormID string // шаблон игрока
	PlayerName   string // имя созданного объекта игрока
	PlayerTag    string // тег, по которому ищется живой игрок
	DefaultSpawn string // тег (или имя) точки появления по умолчанию
	Source       string // источник событий шины

	Logger  *logging.Logger
	Metrics *metrics.EngineMetrics
	Bus     eventbus.EventBus
}

// DefaultOptions настройки по умолчанию
func DefaultOptions() Options {
	return Options{
		PlayerFormID: "spec_player",
		PlayerName:   "Player",
		PlayerTag:    "Player",
		DefaultSpawn: "DefaultPlayerSpawn",
		Source:       "worldscene",
	}
}

// Controller сохраняет и восстанавливает состояние одной сцены.
// Не потокобезопасен: сохранение и восстановление вызываются последовательно
// драйвером переходов между сценами.
type Controller struct {
	graph  SceneGraph
	forms  FormLoader
	opts   Options
	log    *logging.Logger
	tracer trace.Tracer

	// LocalStore непрозрачные данные сцены, живущие вместе с её состоянием
	LocalStore gamestate.DataBag
}

// NewController создаёт контроллер для сцены graph
func NewController(graph SceneGraph, loader FormLoader, opts Options) *Controller {
	def := DefaultOptions()
	if opts.PlayerFormID == "" {
		opts.PlayerFormID = def.PlayerFormID
	}
	if opts.PlayerName == "" {
		opts.PlayerName = def.PlayerName
	}
	if opts.PlayerTag == "" {
		opts.PlayerTag = def.PlayerTag
	}
	if opts.DefaultSpawn == "" {
		opts.DefaultSpawn = def.DefaultSpawn
	}
	if opts.Source == "" {
		opts.Source = def.Source
	}

	log := opts.Logger
	if log == nil {
		log = logging.Default()
	}

	return &Controller{
		graph:      graph,
		forms:      loader,
		opts:       opts,
		log:        log,
		tracer:     observability.Tracer(),
		LocalStore: make(gamestate.DataBag),
	}
}

// Scene имя сцены контроллера
func (c *Controller) Scene() string {
	return c.graph.Name()
}

// Graph живая сцена контроллера
func (c *Controller) Graph() SceneGraph {
	return c.graph
}

// Save записывает состояние всех восстанавливаемых объектов сцены в store.
// Ошибка отдельного объекта логируется и не прерывает сохранение остальных.
func (c *Controller) Save(ctx context.Context, store *gamestate.Store) *Report {
	name := c.graph.Name()
	ctx, span := c.tracer.Start(ctx, "worldscene.Save", trace.WithAttributes(attribute.String("scene", name)))
	defer span.End()

	rep := newReport("save", name)
	store.CurrentScene = name
	c.log.Info("💾 Сохранение сцены %s", name)

	components := c.graph.Restorables()
	local := store.ResetLocalObjects(name)

	for _, rc := range components {
		c.saveOne(store, local, rc, rep)
	}

	store.ReplaceLocalData(name, copyBag(c.LocalStore))

	rep.finish()
	c.observe(ctx, span, rep, eventbus.EventSceneSaved)
	return rep
}

func (c *Controller) saveOne(store *gamestate.Store, local gamestate.ObjectMap, rc restorable.Component, rep *Report) {
	name := objectName(rc)
	kind := rc.Kind()

	defer func() {
		if r := recover(); r != nil {
			c.log.Error("❌ Не удалось сохранить объект %s: паника: %v", name, r)
			c.skip(rep, name, kind, fmt.Errorf("%w: %v", ErrPanic, r))
		}
	}()

	rec, err := rc.Save()
	if err != nil {
		c.log.Error("❌ Не удалось сохранить объект %s: %v", name, err)
		c.skip(rep, name, kind, err)
		return
	}

	switch kind {
	case restorable.KindBlank, restorable.KindDynamic:
		local[name] = rec
	case restorable.KindMotile:
		store.PutMotile(name, rec)
	case restorable.KindPlayer:
		store.SetPlayer(rec)
	default:
		c.log.Warn("⚠️ Неизвестный тип восстанавливаемого объекта у %s", name)
		rep.add(name, kind, OutcomeWarning, ErrUnknownKind)
		c.opts.Metrics.EntitySkipped(rep.Op, Reason(ErrUnknownKind))
		return
	}

	rep.add(name, kind, OutcomeSaved, nil)
	c.opts.Metrics.EntitySaved(kind.String())
}

// Restore восстанавливает сцену из store: локальные объекты, затем мигрирующие, затем игрока.
func (c *Controller) Restore(ctx context.Context, store *gamestate.Store, meta *MetaState) *Report {
	if meta == nil {
		meta = &MetaState{}
	}
	name := c.graph.Name()
	ctx, span := c.tracer.Start(ctx, "worldscene.Restore", trace.WithAttributes(
		attribute.String("scene", name),
		attribute.String("transition", meta.TransitionType.String()),
	))
	defer span.End()

	rep := newReport("restore", name)
	rep.Transition = meta.TransitionType
	c.log.Info("📦 Восстановление сцены %s (%s)", name, meta.TransitionType)

	if bag, ok := store.LocalData(name); ok && bag != nil {
		c.LocalStore = copyBag(bag)
	} else {
		c.LocalStore = make(gamestate.DataBag)
	}

	c.restoreLocalObjects(store, rep)
	c.restoreMotileObjects(store, rep)
	c.restorePlayer(store, meta, rep)

	rep.finish()
	c.observe(ctx, span, rep, eventbus.EventSceneRestored)
	return rep
}

// ExitScene готовит переход в сцену next и сохраняет текущую сцену
func (c *Controller) ExitScene(ctx context.Context, store *gamestate.Store, meta *MetaState, next string) *Report {
	meta.PreviousScene = c.graph.Name()
	meta.NextScene = next
	meta.TransitionType = TransitionChangeScene
	c.log.Info("🚪 Выход из сцены %s -> %s", meta.PreviousScene, next)

	rep := c.Save(ctx, store)
	c.publish(ctx, eventbus.EventSceneExited, rep, map[string]string{"next": next})
	return rep
}

// Start автозагрузка сцены: предзагрузочные намерения, восстановление, послезагрузочные.
// Намерение игрока расходуется: после старта оно сбрасывается.
func (c *Controller) Start(ctx context.Context, store *gamestate.Store, meta *MetaState) *Report {
	if meta == nil {
		meta = &MetaState{}
	}
	for _, in := range meta.Intents {
		if err := in.Preload(ctx, meta); err != nil {
			c.log.Warn("⚠️ Ошибка предзагрузочного намерения: %v", err)
		}
	}

	rep := c.Restore(ctx, store, meta)

	for _, in := range meta.Intents {
		if err := in.Postload(ctx, meta); err != nil {
			c.log.Warn("⚠️ Ошибка послезагрузочного намерения: %v", err)
		}
	}
	meta.PlayerIntent = nil
	meta.Intents = nil
	return rep
}

func (c *Controller) skip(rep *Report, name string, kind restorable.Kind, err error) {
	rep.add(name, kind, OutcomeSkipped, err)
	c.opts.Metrics.EntitySkipped(rep.Op, Reason(err))
}

func (c *Controller) warn(rep *Report, name string, kind restorable.Kind, err error) {
	rep.add(name, kind, OutcomeWarning, err)
}

// observe пишет итог в лог, метрики, трассировку и шину событий
func (c *Controller) observe(ctx context.Context, span trace.Span, rep *Report, eventType string) {
	c.opts.Metrics.ObserveDuration(rep.Op, rep.Duration)

	skipped := rep.Count(OutcomeSkipped)
	span.SetAttributes(
		attribute.Int("saved", rep.Count(OutcomeSaved)),
		attribute.Int("restored", rep.Count(OutcomeRestored)),
		attribute.Int("spawned", rep.Count(OutcomeSpawned)),
		attribute.Int("skipped", skipped),
	)
	if skipped > 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("%d объектов пропущено", skipped))
	}

	c.log.Info("✅ Сцена %s: %s за %s (saved=%d restored=%d spawned=%d skipped=%d warnings=%d)",
		rep.Scene, rep.Op, rep.Duration,
		rep.Count(OutcomeSaved), rep.Count(OutcomeRestored), rep.Count(OutcomeSpawned),
		skipped, rep.Count(OutcomeWarning))

	c.publish(ctx, eventType, rep, nil)
}

func (c *Controller) publish(ctx context.Context, eventType string, rep *Report, extra map[string]string) {
	if c.opts.Bus == nil {
		return
	}
	ev := eventbus.SceneEvent{
		Scene:      rep.Scene,
		Saved:      rep.Count(OutcomeSaved),
		Restored:   rep.Count(OutcomeRestored),
		Spawned:    rep.Count(OutcomeSpawned),
		Skipped:    rep.Count(OutcomeSkipped),
		Warnings:   rep.Count(OutcomeWarning),
		DurationMs: float64(rep.Duration.Microseconds()) / 1000,
		Reasons:    rep.Reasons(),
		Extra:      extra,
	}
	if rep.Op == "restore" {
		ev.Transition = rep.Transition.String()
	}
	env, err := eventbus.NewSceneEnvelope(c.opts.Source, eventType, ev)
	if err != nil {
		c.log.Warn("⚠️ %v", err)
		return
	}
	if err := c.opts.Bus.Publish(ctx, env); err != nil {
		c.log.Warn("⚠️ Не удалось опубликовать %s: %v", eventType, err)
	}
}

func objectName(rc restorable.Component) string {
	if b := rc.Body(); b != nil {
		return b.Name()
	}
	return "<без объекта>"
}

func copyBag(bag gamestate.DataBag) gamestate.DataBag {
	c := make(gamestate.DataBag, len(bag))
	for k, v := range bag {
		c[k] = v
	}
	return c
}
