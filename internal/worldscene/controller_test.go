package worldscene

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/annel0/commoncore/internal/eventbus"
	"github.com/annel0/commoncore/internal/forms"
	"github.com/annel0/commoncore/internal/gamestate"
	"github.com/annel0/commoncore/internal/logging"
	"github.com/annel0/commoncore/internal/metrics"
	"github.com/annel0/commoncore/internal/restorable"
	"github.com/annel0/commoncore/internal/scene"
	"github.com/annel0/commoncore/internal/vec"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testForms(t *testing.T) *forms.Registry {
	t.Helper()
	reg := forms.NewRegistry()
	for _, f := range []forms.Form{
		{ID: "npc_guard", Tag: "NPC", Restorable: restorable.KindDynamic},
		{ID: "cart", Restorable: restorable.KindMotile},
		{ID: "crate"}, // без компонента: движок навесит нужный сам
		{ID: "spec_player", Tag: "Player", Restorable: restorable.KindPlayer,
			Transform: vec.NewTransform(vec.Vec3{X: 1, Y: 2, Z: 3})},
	} {
		require.NoError(t, reg.Register(f))
	}
	return reg
}

func quietOptions() Options {
	opts := DefaultOptions()
	opts.Logger = logging.NewConsoleLogger("worldscene", &bytes.Buffer{}, logging.DEBUG)
	return opts
}

func addNode(t *testing.T, g *scene.Graph, name string, kind restorable.Kind, formID string) *scene.Node {
	t.Helper()
	n := scene.NewNode(name)
	if kind != restorable.KindUnknown {
		require.NoError(t, n.Attach(kind, formID))
	}
	return g.Add(n)
}

func addSpawnPoint(g *scene.Graph, name, tag string, pos vec.Vec3) *scene.Node {
	n := scene.NewNode(name)
	n.SetTag(tag)
	n.SetTransform(vec.NewTransform(pos))
	return g.Add(n)
}

// populatedTown сцена со всеми вариантами компонентов
func populatedTown(t *testing.T, reg *forms.Registry) *scene.Graph {
	g := scene.NewGraph("Town")

	well := addNode(t, g, "Well", restorable.KindBlank, "")
	well.Set("water", "full")

	guard := addNode(t, g, "Guard_03", restorable.KindDynamic, "npc_guard")
	guard.SetTransform(vec.NewTransform(vec.Vec3{X: 7, Y: 0, Z: -2}))
	guard.Set("mood", "angry")

	cart := addNode(t, g, "Cart", restorable.KindMotile, "cart")
	cart.SetTransform(vec.NewTransform(vec.Vec3{X: 3, Y: 0, Z: 3}))

	form, ok := reg.Lookup("spec_player")
	require.True(t, ok)
	player, err := g.Spawn(form, "Player")
	require.NoError(t, err)
	player.SetTransform(vec.NewTransform(vec.Vec3{X: 50, Y: 1, Z: 50}))
	player.Set("hp", "42")
	return g
}

func TestSaveRestore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	reg := testForms(t)
	store := gamestate.NewStore()

	src := NewController(populatedTown(t, reg), reg, quietOptions())
	rep := src.Save(ctx, store)
	require.NoError(t, rep.Err())
	assert.Equal(t, 4, rep.Count(OutcomeSaved))
	assert.Equal(t, "Town", store.CurrentScene)

	local, ok := store.LocalObjects("Town")
	require.True(t, ok)
	assert.Equal(t, []string{"Guard_03", "Well"}, local.Keys())
	assert.Equal(t, restorable.KindMotile, store.MotileObjects()["Cart"].Kind)
	assert.Equal(t, "Town", store.MotileObjects()["Cart"].Scene)
	require.NotNil(t, store.Player())

	// Новая сцена содержит только статичный колодец
	dst := scene.NewGraph("Town")
	addNode(t, dst, "Well", restorable.KindBlank, "")
	ctrl := NewController(dst, reg, quietOptions())

	rep = ctrl.Restore(ctx, store, &MetaState{TransitionType: TransitionLoadGame})
	require.NoError(t, rep.Err())

	well, _ := dst.FindByName("Well")
	assert.Equal(t, "full", well.Data()["water"])

	assert.Equal(t, 1, dst.CountNamed("Guard_03"))
	guard, ok := dst.FindByName("Guard_03")
	require.True(t, ok)
	assert.Equal(t, vec.Vec3{X: 7, Y: 0, Z: -2}, guard.Transform().Position)
	assert.Equal(t, "angry", guard.Data()["mood"])
	gc, _ := guard.Restorable()
	assert.Equal(t, restorable.KindDynamic, gc.Kind())

	cart, ok := dst.FindByName("Cart")
	require.True(t, ok)
	assert.Equal(t, vec.Vec3{X: 3, Y: 0, Z: 3}, cart.Transform().Position)

	player, ok := dst.FindByTag("Player")
	require.True(t, ok)
	assert.Equal(t, vec.Vec3{X: 50, Y: 1, Z: 50}, player.Transform().Position)
	assert.Equal(t, "42", player.Data()["hp"])

	assert.Equal(t, 3, rep.Count(OutcomeSpawned))
	assert.Equal(t, 2, rep.Count(OutcomeRestored))
}

func TestSave_Idempotent(t *testing.T) {
	ctx := context.Background()
	reg := testForms(t)
	store := gamestate.NewStore()
	ctrl := NewController(populatedTown(t, reg), reg, quietOptions())

	ctrl.Save(ctx, store)
	first, _ := store.LocalObjects("Town")
	first = first.Clone()

	ctrl.Save(ctx, store)
	second, _ := store.LocalObjects("Town")
	assert.Equal(t, first, second)
}

func TestSave_ClearsStaleLocalEntries(t *testing.T) {
	ctx := context.Background()
	reg := testForms(t)
	store := gamestate.NewStore()
	store.PutLocal("Town", "Ghost", &restorable.Record{Kind: restorable.KindBlank})

	NewController(populatedTown(t, reg), reg, quietOptions()).Save(ctx, store)

	local, _ := store.LocalObjects("Town")
	assert.NotContains(t, local, "Ghost")
}

func TestSave_LocalDataBag(t *testing.T) {
	ctx := context.Background()
	reg := testForms(t)
	store := gamestate.NewStore()

	src := NewController(scene.NewGraph("Town"), reg, quietOptions())
	src.LocalStore["quest"] = "done"
	src.Save(ctx, store)
	src.LocalStore["quest"] = "changed"

	dst := NewController(scene.NewGraph("Town"), reg, quietOptions())
	dst.Restore(ctx, store, &MetaState{TransitionType: TransitionLoadGame})
	assert.Equal(t, "done", dst.LocalStore["quest"])

	empty := NewController(scene.NewGraph("Cave"), reg, quietOptions())
	empty.Restore(ctx, store, nil)
	assert.Empty(t, empty.LocalStore)
}

func TestRestore_MotileFilteredByScene(t *testing.T) {
	ctx := context.Background()
	reg := testForms(t)
	store := gamestate.NewStore()
	NewController(populatedTown(t, reg), reg, quietOptions()).Save(ctx, store)

	cave := scene.NewGraph("Cave")
	rep := NewController(cave, reg, quietOptions()).Restore(ctx, store, &MetaState{TransitionType: TransitionLoadGame})
	assert.Equal(t, 0, cave.CountNamed("Cart"))
	assert.Empty(t, rep.Find("Cart"))

	// Запись остаётся в общем пуле, пока её не перезапишет другая сцена
	assert.Contains(t, store.MotileObjects(), "Cart")
}

func TestRestore_MotileNeverMatched(t *testing.T) {
	ctx := context.Background()
	reg := testForms(t)
	store := gamestate.NewStore()
	NewController(populatedTown(t, reg), reg, quietOptions()).Save(ctx, store)

	town := scene.NewGraph("Town")
	addNode(t, town, "Cart", restorable.KindMotile, "cart")
	NewController(town, reg, quietOptions()).Restore(ctx, store, &MetaState{TransitionType: TransitionLoadGame})
	assert.Equal(t, 2, town.CountNamed("Cart"))
}

func TestRestore_MissingTemplateContinues(t *testing.T) {
	ctx := context.Background()
	reg := testForms(t)
	store := gamestate.NewStore()
	store.PutLocal("Town", "A_Orphan", &restorable.Record{Kind: restorable.KindDynamic, FormID: "nope"})
	store.PutLocal("Town", "B_Guard", &restorable.Record{Kind: restorable.KindDynamic, FormID: "npc_guard"})

	g := scene.NewGraph("Town")
	rep := NewController(g, reg, quietOptions()).Restore(ctx, store, &MetaState{TransitionType: TransitionLoadGame})

	assert.Equal(t, 0, g.CountNamed("A_Orphan"))
	assert.Equal(t, 1, g.CountNamed("B_Guard"))
	require.Len(t, rep.Skipped(), 1)
	assert.Equal(t, "A_Orphan", rep.Skipped()[0].Name)
	assert.ErrorIs(t, rep.Skipped()[0].Err, ErrTemplateNotFound)
}

func TestRestore_MotileMissingTemplateContinues(t *testing.T) {
	ctx := context.Background()
	reg := testForms(t)
	store := gamestate.NewStore()
	store.PutMotile("Boat", &restorable.Record{Kind: restorable.KindMotile, FormID: "boat", Scene: "Town"})
	store.PutMotile("Cart", &restorable.Record{Kind: restorable.KindMotile, FormID: "cart", Scene: "Town"})

	g := scene.NewGraph("Town")
	rep := NewController(g, reg, quietOptions()).Restore(ctx, store, &MetaState{TransitionType: TransitionLoadGame})

	assert.Equal(t, 0, g.CountNamed("Boat"))
	assert.Equal(t, 1, g.CountNamed("Cart"))

	require.Len(t, rep.Skipped(), 1)
	assert.Equal(t, "Boat", rep.Skipped()[0].Name)
	assert.Equal(t, restorable.KindMotile, rep.Skipped()[0].Kind)
	assert.ErrorIs(t, rep.Skipped()[0].Err, ErrTemplateNotFound)

	cart := rep.Find("Cart")
	require.Len(t, cart, 1)
	assert.Equal(t, OutcomeSpawned, cart[0].Outcome)
}

func TestRestore_GuardSpawnedFromTemplate(t *testing.T) {
	ctx := context.Background()
	reg := testForms(t)
	store := gamestate.NewStore()

	src := scene.NewGraph("Keep")
	guard := addNode(t, src, "Guard_03", restorable.KindDynamic, "npc_guard")
	guard.SetTransform(vec.NewTransform(vec.Vec3{X: -4, Y: 0, Z: 9}))
	guard.SetActive(false)
	NewController(src, reg, quietOptions()).Save(ctx, store)

	rec := store.LocalObjectState["Keep"]["Guard_03"]
	require.NotNil(t, rec)
	assert.Equal(t, restorable.KindDynamic, rec.Kind)
	assert.Equal(t, "npc_guard", rec.FormID)

	dst := scene.NewGraph("Keep")
	NewController(dst, reg, quietOptions()).Restore(ctx, store, &MetaState{TransitionType: TransitionLoadGame})

	assert.Equal(t, 1, dst.CountNamed("Guard_03"))
	spawned, _ := dst.FindByName("Guard_03")
	assert.Equal(t, "NPC", spawned.Tag())
	assert.False(t, spawned.Active())
	assert.Equal(t, vec.Vec3{X: -4, Y: 0, Z: 9}, spawned.Transform().Position)
}

func TestRestore_SpawnAttachesMissingComponent(t *testing.T) {
	ctx := context.Background()
	reg := testForms(t)
	store := gamestate.NewStore()
	store.PutLocal("Town", "Crate_1", &restorable.Record{Kind: restorable.KindDynamic, FormID: "crate"})

	g := scene.NewGraph("Town")
	rep := NewController(g, reg, quietOptions()).Restore(ctx, store, &MetaState{TransitionType: TransitionLoadGame})
	require.NoError(t, rep.Err())

	crate, ok := g.FindByName("Crate_1")
	require.True(t, ok)
	c, ok := crate.Restorable()
	require.True(t, ok)
	assert.Equal(t, restorable.KindDynamic, c.Kind())
}

func TestRestore_BlankNeverSpawned(t *testing.T) {
	ctx := context.Background()
	reg := testForms(t)
	store := gamestate.NewStore()
	store.PutLocal("Town", "Statue", &restorable.Record{Kind: restorable.KindBlank})

	g := scene.NewGraph("Town")
	rep := NewController(g, reg, quietOptions()).Restore(ctx, store, &MetaState{TransitionType: TransitionLoadGame})
	assert.Equal(t, 0, g.CountNamed("Statue"))
	assert.True(t, rep.HasError(ErrObjectNotFound))
}

func TestRestore_WrongVariantSkipped(t *testing.T) {
	ctx := context.Background()
	reg := testForms(t)
	store := gamestate.NewStore()
	store.PutLocal("Town", "Well", &restorable.Record{Kind: restorable.KindDynamic, FormID: "npc_guard"})
	store.PutLocal("Town", "Wagon", &restorable.Record{Kind: restorable.KindMotile, FormID: "cart"})
	store.PutLocal("Town", "Fence", &restorable.Record{Kind: restorable.KindBlank})

	g := scene.NewGraph("Town")
	addNode(t, g, "Well", restorable.KindBlank, "")
	addNode(t, g, "Fence", restorable.KindUnknown, "")
	rep := NewController(g, reg, quietOptions()).Restore(ctx, store, &MetaState{TransitionType: TransitionLoadGame})

	require.Len(t, rep.Skipped(), 3)
	well := rep.Find("Well")
	require.Len(t, well, 1)
	assert.ErrorIs(t, well[0].Err, restorable.ErrKindMismatch)
	assert.NotErrorIs(t, well[0].Err, ErrMissingComponent)
	assert.Equal(t, "kind_mismatch", Reason(well[0].Err))

	wagon := rep.Find("Wagon")
	require.Len(t, wagon, 1)
	assert.ErrorIs(t, wagon[0].Err, restorable.ErrKindMismatch)

	// объект без компонента
	fence := rep.Find("Fence")
	require.Len(t, fence, 1)
	assert.ErrorIs(t, fence[0].Err, ErrMissingComponent)

	assert.Equal(t, 1, g.CountNamed("Well"))
	assert.Equal(t, 0, g.CountNamed("Wagon"))
}

func TestRestorePlayer_FreshGame(t *testing.T) {
	ctx := context.Background()
	reg := testForms(t)
	g := scene.NewGraph("Town")
	addSpawnPoint(g, "StartPoint", "DefaultPlayerSpawn", vec.Vec3{X: 11, Y: 0, Z: 12})

	rep := NewController(g, reg, quietOptions()).Restore(ctx, gamestate.NewStore(), &MetaState{TransitionType: TransitionNewGame})

	player, ok := g.FindByTag("Player")
	require.True(t, ok)
	assert.Equal(t, vec.Vec3{X: 11, Y: 0, Z: 12}, player.Transform().Position)
	assert.True(t, rep.HasError(ErrNoPlayerData))
	assert.True(t, rep.HasError(ErrNoIntent))
	assert.Empty(t, rep.Skipped())
}

func TestRestorePlayer_LoadGameIgnoresIntent(t *testing.T) {
	ctx := context.Background()
	reg := testForms(t)
	store := gamestate.NewStore()
	NewController(populatedTown(t, reg), reg, quietOptions()).Save(ctx, store)

	g := scene.NewGraph("Town")
	addSpawnPoint(g, "eastDoor", "", vec.Vec3{X: 10})
	meta := &MetaState{TransitionType: TransitionLoadGame, PlayerIntent: SpawnAt("eastDoor")}
	NewController(g, reg, quietOptions()).Restore(ctx, store, meta)

	player, ok := g.FindByTag("Player")
	require.True(t, ok)
	assert.Equal(t, vec.Vec3{X: 50, Y: 1, Z: 50}, player.Transform().Position)
}

func TestRestorePlayer_SceneChangeUsesIntent(t *testing.T) {
	ctx := context.Background()
	reg := testForms(t)
	store := gamestate.NewStore()
	NewController(populatedTown(t, reg), reg, quietOptions()).Save(ctx, store)

	g := scene.NewGraph("Harbor")
	door := addSpawnPoint(g, "eastDoor", "", vec.Vec3{X: 10, Y: 0, Z: 0})
	door.SetTransform(vec.Transform{Position: vec.Vec3{X: 10}, Rotation: vec.YawQuat(1.5)})
	meta := &MetaState{TransitionType: TransitionChangeScene, PlayerIntent: SpawnAt("eastDoor")}
	rep := NewController(g, reg, quietOptions()).Restore(ctx, store, meta)
	require.NoError(t, rep.Err())

	player, ok := g.FindByTag("Player")
	require.True(t, ok)
	assert.Equal(t, vec.Vec3{X: 10}, player.Transform().Position)
	assert.Equal(t, vec.YawQuat(1.5), player.Transform().Rotation)
	// запись игрока не применялась
	assert.NotContains(t, player.Data(), "hp")
}

func TestRestorePlayer_EmptySpawnNoDefault(t *testing.T) {
	reg := testForms(t)
	g := scene.NewGraph("Town")

	meta := &MetaState{TransitionType: TransitionChangeScene, PlayerIntent: SpawnAt("")}
	var rep *Report
	assert.NotPanics(t, func() {
		rep = NewController(g, reg, quietOptions()).Restore(context.Background(), gamestate.NewStore(), meta)
	})

	player, ok := g.FindByTag("Player")
	require.True(t, ok)
	assert.Equal(t, vec.Vec3{X: 1, Y: 2, Z: 3}, player.Transform().Position)
	assert.Empty(t, rep.Skipped())
}

func TestRestorePlayer_Duplicate(t *testing.T) {
	ctx := context.Background()
	reg := testForms(t)
	store := gamestate.NewStore()
	NewController(populatedTown(t, reg), reg, quietOptions()).Save(ctx, store)

	g := scene.NewGraph("Harbor")
	form, _ := reg.Lookup("spec_player")
	_, err := g.Spawn(form, "Player")
	require.NoError(t, err)
	addSpawnPoint(g, "eastDoor", "", vec.Vec3{X: 10})

	meta := &MetaState{TransitionType: TransitionChangeScene, PlayerIntent: SpawnAt("eastDoor")}
	rep := NewController(g, reg, quietOptions()).Restore(ctx, store, meta)

	assert.True(t, rep.HasError(ErrDuplicatePlayer))
	assert.Equal(t, 1, g.CountNamed("Player"))
	player, _ := g.FindByTag("Player")
	assert.Equal(t, vec.Vec3{X: 10}, player.Transform().Position)

	// при загрузке запись применяется к существующему игроку
	rep = NewController(g, reg, quietOptions()).Restore(ctx, store, &MetaState{TransitionType: TransitionLoadGame})
	assert.True(t, rep.HasError(ErrDuplicatePlayer))
	assert.Equal(t, vec.Vec3{X: 50, Y: 1, Z: 50}, player.Transform().Position)
}

func TestRestorePlayer_ExistingWithoutRecord(t *testing.T) {
	ctx := context.Background()
	reg := testForms(t)

	g := scene.NewGraph("Town")
	form, _ := reg.Lookup("spec_player")
	_, err := g.Spawn(form, "Player")
	require.NoError(t, err)
	addSpawnPoint(g, "StartPoint", "DefaultPlayerSpawn", vec.Vec3{X: 11, Y: 0, Z: 12})

	rep := NewController(g, reg, quietOptions()).Restore(ctx, gamestate.NewStore(), &MetaState{TransitionType: TransitionNewGame})

	assert.False(t, rep.HasError(ErrDuplicatePlayer))
	assert.True(t, rep.HasError(ErrNoPlayerData))
	assert.Equal(t, 0, rep.Count(OutcomeSpawned))
	assert.Equal(t, 1, g.CountNamed("Player"))
	player, _ := g.FindByTag("Player")
	assert.Equal(t, vec.Vec3{X: 11, Y: 0, Z: 12}, player.Transform().Position)
}

func TestRestorePlayer_MissingTemplate(t *testing.T) {
	g := scene.NewGraph("Town")
	opts := quietOptions()
	opts.PlayerFormID = "no_such_player"

	rep := NewController(g, testForms(t), opts).Restore(context.Background(), gamestate.NewStore(), nil)
	assert.True(t, rep.HasError(ErrTemplateNotFound))
	assert.Equal(t, 0, g.Count())
}

// brokenComponent компонент, падающий с паникой
type brokenComponent struct {
	body restorable.Body
	kind restorable.Kind
}

func (b *brokenComponent) Kind() restorable.Kind             { return b.kind }
func (b *brokenComponent) Body() restorable.Body             { return b.body }
func (b *brokenComponent) Save() (*restorable.Record, error) { panic("сломано") }
func (b *brokenComponent) Restore(*restorable.Record) error  { panic("сломано") }

func TestSave_PanicRecovered(t *testing.T) {
	reg := testForms(t)
	g := populatedTown(t, reg)
	bad := scene.NewNode("Broken")
	bad.SetComponent(&brokenComponent{body: bad, kind: restorable.KindDynamic})
	g.Add(bad)

	store := gamestate.NewStore()
	rep := NewController(g, reg, quietOptions()).Save(context.Background(), store)

	assert.True(t, rep.HasError(ErrPanic))
	assert.Equal(t, 4, rep.Count(OutcomeSaved))
	local, _ := store.LocalObjects("Town")
	assert.NotContains(t, local, "Broken")
}

func TestRestore_PanicRecovered(t *testing.T) {
	reg := testForms(t)
	store := gamestate.NewStore()
	store.PutLocal("Town", "A_Broken", &restorable.Record{Kind: restorable.KindDynamic})
	store.PutLocal("Town", "B_Guard", &restorable.Record{Kind: restorable.KindDynamic, FormID: "npc_guard"})

	g := scene.NewGraph("Town")
	bad := scene.NewNode("A_Broken")
	bad.SetComponent(&brokenComponent{body: bad, kind: restorable.KindDynamic})
	g.Add(bad)

	rep := NewController(g, reg, quietOptions()).Restore(context.Background(), store, &MetaState{TransitionType: TransitionLoadGame})
	assert.True(t, rep.HasError(ErrPanic))
	assert.Equal(t, 1, g.CountNamed("B_Guard"))
}

func TestSave_UnknownKindWarns(t *testing.T) {
	g := scene.NewGraph("Town")
	odd := scene.NewNode("Odd")
	odd.SetComponent(&oddComponent{body: odd})
	g.Add(odd)

	store := gamestate.NewStore()
	rep := NewController(g, testForms(t), quietOptions()).Save(context.Background(), store)
	assert.Equal(t, 1, rep.Count(OutcomeWarning))
	assert.True(t, rep.HasError(ErrUnknownKind))
	local, _ := store.LocalObjects("Town")
	assert.Empty(t, local)
}

type oddComponent struct{ body restorable.Body }

func (o *oddComponent) Kind() restorable.Kind { return restorable.KindUnknown }
func (o *oddComponent) Body() restorable.Body { return o.body }
func (o *oddComponent) Save() (*restorable.Record, error) {
	return &restorable.Record{Kind: restorable.KindUnknown}, nil
}
func (o *oddComponent) Restore(*restorable.Record) error { return nil }

func TestExitScene(t *testing.T) {
	reg := testForms(t)
	store := gamestate.NewStore()
	meta := &MetaState{TransitionType: TransitionNewGame}

	rep := NewController(populatedTown(t, reg), reg, quietOptions()).ExitScene(context.Background(), store, meta, "Harbor")
	assert.Equal(t, "Town", meta.PreviousScene)
	assert.Equal(t, "Harbor", meta.NextScene)
	assert.Equal(t, TransitionChangeScene, meta.TransitionType)
	assert.Equal(t, "Town", store.CurrentScene)
	assert.Equal(t, 4, rep.Count(OutcomeSaved))
}

type recordingIntent struct {
	calls []string
}

func (r *recordingIntent) Preload(ctx context.Context, meta *MetaState) error {
	r.calls = append(r.calls, "pre")
	return nil
}

func (r *recordingIntent) Postload(ctx context.Context, meta *MetaState) error {
	r.calls = append(r.calls, "post")
	return assert.AnError
}

func TestStart_RunsIntentsAndConsumesThem(t *testing.T) {
	reg := testForms(t)
	g := scene.NewGraph("Harbor")
	addSpawnPoint(g, "eastDoor", "", vec.Vec3{X: 10})

	in := &recordingIntent{}
	meta := &MetaState{
		TransitionType: TransitionChangeScene,
		PlayerIntent:   SpawnAt("eastDoor"),
		Intents:        []Intent{in},
	}
	NewController(g, reg, quietOptions()).Start(context.Background(), gamestate.NewStore(), meta)

	assert.Equal(t, []string{"pre", "post"}, in.calls)
	assert.Nil(t, meta.PlayerIntent)
	assert.Nil(t, meta.Intents)
	player, ok := g.FindByTag("Player")
	require.True(t, ok)
	assert.Equal(t, vec.Vec3{X: 10}, player.Transform().Position)
}

func TestController_MetricsAndEvents(t *testing.T) {
	ctx := context.Background()
	reg := testForms(t)

	promReg := prometheus.NewRegistry()
	m, err := metrics.NewEngineMetrics(promReg)
	require.NoError(t, err)

	bus := eventbus.NewMemoryBus(16)
	defer bus.Close()
	events := make(chan eventbus.SceneEvent, 4)
	_, err = bus.Subscribe(ctx, eventbus.Filter{Types: []string{eventbus.EventSceneSaved, eventbus.EventSceneRestored}},
		func(ctx context.Context, env *eventbus.Envelope) {
			ev, err := eventbus.DecodeSceneEvent(env)
			if err == nil {
				events <- ev
			}
		})
	require.NoError(t, err)

	opts := quietOptions()
	opts.Metrics = m
	opts.Bus = bus

	store := gamestate.NewStore()
	NewController(populatedTown(t, reg), reg, opts).Save(ctx, store)
	store.PutLocal("Cave", "Orphan", &restorable.Record{Kind: restorable.KindDynamic, FormID: "nope"})
	NewController(scene.NewGraph("Cave"), reg, opts).Restore(ctx, store, &MetaState{TransitionType: TransitionLoadGame})

	count, err := testutil.GatherAndCount(promReg, "worldscene_entities_saved_total")
	require.NoError(t, err)
	assert.Equal(t, 4, count)
	count, err = testutil.GatherAndCount(promReg, "worldscene_entities_skipped_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	var got []eventbus.SceneEvent
	for len(got) < 2 {
		select {
		case ev := <-events:
			got = append(got, ev)
		case <-time.After(2 * time.Second):
			t.Fatal("события не доставлены")
		}
	}
	assert.Equal(t, "Town", got[0].Scene)
	assert.Equal(t, 4, got[0].Saved)
	assert.Equal(t, "Cave", got[1].Scene)
	assert.Equal(t, "load_game", got[1].Transition)
	assert.Equal(t, 1, got[1].Reasons["template_not_found"])
}
