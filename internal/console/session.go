package console

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/annel0/commoncore/internal/eventbus"
	"github.com/annel0/commoncore/internal/forms"
	"github.com/annel0/commoncore/internal/gamestate"
	"github.com/annel0/commoncore/internal/scene"
	"github.com/annel0/commoncore/internal/storage"
	"github.com/annel0/commoncore/internal/worldscene"
)

var (
	// ErrUnknownScene сцены нет среди загруженных описаний
	ErrUnknownScene = errors.New("неизвестная сцена")
	// ErrNoActiveScene ни одна сцена ещё не загружена
	ErrNoActiveScene = errors.New("нет активной сцены")
)

// Session песочница консоли: одно хранилище состояния и одна активная сцена.
// Переходы между сценами выполняются так же, как их выполняет игра:
// выход из сцены сохраняет её, вход строит сцену заново и восстанавливает.
type Session struct {
	mu sync.Mutex

	specs map[string]*scene.Spec
	forms *forms.Registry
	repo  storage.SaveRepo
	opts  worldscene.Options

	store  *gamestate.Store
	meta   *worldscene.MetaState
	active *worldscene.Controller
	last   *worldscene.Report
}

// NewSession создаёт сессию с пустым хранилищем состояния
func NewSession(specs map[string]*scene.Spec, registry *forms.Registry, repo storage.SaveRepo, opts worldscene.Options) *Session {
	return &Session{
		specs: specs,
		forms: registry,
		repo:  repo,
		opts:  opts,
		store: gamestate.NewStore(),
		meta:  &worldscene.MetaState{},
	}
}

// Scenes имена известных сцен
func (s *Session) Scenes() []string {
	names := make([]string, 0, len(s.specs))
	for name := range s.specs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewGame сбрасывает состояние и входит в сцену start
func (s *Session) NewGame(ctx context.Context, start string, intent *worldscene.PlayerIntent) (*worldscene.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.store = gamestate.NewStore()
	s.meta = &worldscene.MetaState{
		TransitionType: worldscene.TransitionNewGame,
		PlayerIntent:   intent,
		NextScene:      start,
	}
	return s.enter(ctx, start)
}

// Transition выходит из активной сцены и входит в next с намерением intent
func (s *Session) Transition(ctx context.Context, next string, intent *worldscene.PlayerIntent) (*worldscene.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.specs[next]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownScene, next)
	}
	if s.active == nil {
		s.meta = &worldscene.MetaState{TransitionType: worldscene.TransitionChangeScene}
	} else {
		s.active.ExitScene(ctx, s.store, s.meta, next)
	}
	s.meta.PlayerIntent = intent
	return s.enter(ctx, next)
}

// SaveScene сохраняет активную сцену в хранилище состояния
func (s *Session) SaveScene(ctx context.Context, name string) (*worldscene.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active == nil {
		return nil, ErrNoActiveScene
	}
	if name != s.active.Scene() {
		return nil, fmt.Errorf("%w: активна сцена %s, а не %s", ErrNoActiveScene, s.active.Scene(), name)
	}
	s.last = s.active.Save(ctx, s.store)
	return s.last, nil
}

// SaveSlot сохраняет активную сцену и записывает хранилище в слот
func (s *Session) SaveSlot(ctx context.Context, slot string) (*storage.SlotInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active != nil {
		s.last = s.active.Save(ctx, s.store)
	}
	info, err := s.repo.Save(ctx, slot, s.store)
	if err != nil {
		return nil, err
	}
	s.publishSlot(ctx, eventbus.EventSlotSaved, slot)
	return info, nil
}

// LoadSlot заменяет хранилище содержимым слота и входит в сохранённую сцену
func (s *Session) LoadSlot(ctx context.Context, slot string) (*worldscene.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	store, found, err := s.repo.Load(ctx, slot)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", storage.ErrSlotNotFound, slot)
	}
	if _, ok := s.specs[store.CurrentScene]; !ok {
		return nil, fmt.Errorf("%w: %q в слоте %s", ErrUnknownScene, store.CurrentScene, slot)
	}

	s.store = store
	s.meta = &worldscene.MetaState{
		TransitionType: worldscene.TransitionLoadGame,
		NextScene:      store.CurrentScene,
	}
	rep, err := s.enter(ctx, store.CurrentScene)
	if err == nil {
		s.publishSlot(ctx, eventbus.EventSlotLoaded, slot)
	}
	return rep, err
}

// ListSlots слоты хранилища сохранений
func (s *Session) ListSlots(ctx context.Context) ([]storage.SlotInfo, error) {
	return s.repo.List(ctx)
}

// enter строит сцену заново из описания и запускает её; вызывается под s.mu
func (s *Session) enter(ctx context.Context, name string) (*worldscene.Report, error) {
	spec, ok := s.specs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownScene, name)
	}
	g, err := spec.Build()
	if err != nil {
		return nil, err
	}

	s.active = worldscene.NewController(g, s.forms, s.opts)
	s.last = s.active.Start(ctx, s.store, s.meta)
	return s.last, nil
}

func (s *Session) publishSlot(ctx context.Context, eventType, slot string) {
	if s.opts.Bus == nil {
		return
	}
	env, err := eventbus.NewSceneEnvelope(s.opts.Source, eventType, eventbus.SceneEvent{
		Scene: s.store.CurrentScene,
		Extra: map[string]string{"slot": slot},
	})
	if err != nil {
		return
	}
	s.opts.Bus.Publish(ctx, env)
}

// view выполняет fn под блокировкой сессии
func (s *Session) view(fn func(store *gamestate.Store, active *worldscene.Controller, meta *worldscene.MetaState, last *worldscene.Report)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.store, s.active, s.meta, s.last)
}
