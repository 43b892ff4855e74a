package restorable

import (
	"encoding/json"
	"testing"

	"github.com/annel0/commoncore/internal/vec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBody struct {
	name      string
	scene     string
	active    bool
	transform vec.Transform
	data      map[string]interface{}
}

func (b *fakeBody) Name() string                        { return b.name }
func (b *fakeBody) Scene() string                       { return b.scene }
func (b *fakeBody) Active() bool                        { return b.active }
func (b *fakeBody) SetActive(active bool)               { b.active = active }
func (b *fakeBody) Transform() vec.Transform            { return b.transform }
func (b *fakeBody) SetTransform(t vec.Transform)        { b.transform = t }
func (b *fakeBody) Data() map[string]interface{}        { return b.data }
func (b *fakeBody) SetData(data map[string]interface{}) { b.data = data }

func sampleBody(name string) *fakeBody {
	return &fakeBody{
		name:      name,
		scene:     "Town",
		active:    true,
		transform: vec.NewTransform(vec.Vec3{X: 3, Y: 0, Z: -7.5}),
		data:      map[string]interface{}{"health": 42.0, "faction": "watch", "hostile": false},
	}
}

func TestRoundTrip_AllVariants(t *testing.T) {
	for _, kind := range []Kind{KindBlank, KindDynamic, KindMotile, KindPlayer} {
		t.Run(kind.String(), func(t *testing.T) {
			src := sampleBody("Guard_03")
			comp, err := New(kind, src, "npc_guard")
			require.NoError(t, err)

			rec, err := comp.Save()
			require.NoError(t, err)
			assert.Equal(t, kind, rec.Kind)

			dst := &fakeBody{name: "Guard_03", scene: "Town", transform: vec.NewTransform(vec.Zero)}
			target, err := New(kind, dst, "")
			require.NoError(t, err)
			require.NoError(t, target.Restore(rec))

			again, err := target.Save()
			require.NoError(t, err)
			assert.JSONEq(t, string(rec.Payload), string(again.Payload), "нагрузка должна совпадать после восстановления")
			assert.Equal(t, src.data, dst.data)
		})
	}
}

func TestSave_RecordFields(t *testing.T) {
	body := sampleBody("Cart")

	blank, _ := New(KindBlank, body, "ignored")
	rec, err := blank.Save()
	require.NoError(t, err)
	assert.Empty(t, rec.FormID, "у blank нет шаблона")
	assert.Empty(t, rec.Scene)

	dyn, _ := New(KindDynamic, body, "cart_wood")
	rec, err = dyn.Save()
	require.NoError(t, err)
	assert.Equal(t, "cart_wood", rec.FormID)
	assert.Empty(t, rec.Scene, "scene заполняется только у motile")

	mot, _ := New(KindMotile, body, "cart_wood")
	rec, err = mot.Save()
	require.NoError(t, err)
	assert.Equal(t, "cart_wood", rec.FormID)
	assert.Equal(t, "Town", rec.Scene)

	player, _ := New(KindPlayer, body, "spec_player")
	rec, err = player.Save()
	require.NoError(t, err)
	assert.Empty(t, rec.FormID)
}

func TestRestore_KindMismatch(t *testing.T) {
	body := sampleBody("Door")
	blank, _ := New(KindBlank, body, "")
	rec, err := blank.Save()
	require.NoError(t, err)

	dyn, _ := New(KindDynamic, sampleBody("Door"), "door")
	err = dyn.Restore(rec)
	assert.ErrorIs(t, err, ErrKindMismatch)

	mot, _ := New(KindMotile, sampleBody("Door"), "door")
	dynRec, _ := dyn.Save()
	assert.ErrorIs(t, mot.Restore(dynRec), ErrKindMismatch, "dynamic и motile не взаимозаменяемы")

	assert.ErrorIs(t, blank.Restore(nil), ErrNilRecord)
}

func TestRestore_BadAndEmptyPayload(t *testing.T) {
	body := sampleBody("Chest")
	comp, _ := New(KindBlank, body, "")

	err := comp.Restore(&Record{Kind: KindBlank, Payload: json.RawMessage(`{"active":`)})
	assert.ErrorIs(t, err, ErrBadPayload)

	require.NoError(t, comp.Restore(&Record{Kind: KindBlank}))
	assert.True(t, body.active, "пустая нагрузка не меняет объект")
}

func TestNew_UnknownKind(t *testing.T) {
	_, err := New(KindUnknown, sampleBody("x"), "")
	assert.Error(t, err)
	_, err = New(KindBlank, nil, "")
	assert.Error(t, err)
}

func TestKind_TextRoundTrip(t *testing.T) {
	data, err := json.Marshal(map[string]Kind{"k": KindMotile})
	require.NoError(t, err)
	assert.JSONEq(t, `{"k":"motile"}`, string(data))

	var back map[string]Kind
	require.NoError(t, json.Unmarshal([]byte(`{"k":"local"}`), &back))
	assert.Equal(t, KindDynamic, back["k"])

	_, err = ParseKind("ghost")
	assert.Error(t, err)
	assert.True(t, KindBlank.Local())
	assert.False(t, KindMotile.Local())
	assert.False(t, KindUnknown.Valid())
}

func TestRecord_CloneEqual(t *testing.T) {
	rec := &Record{Kind: KindDynamic, FormID: "npc_guard", Payload: json.RawMessage(`{"active":true}`)}
	c := rec.Clone()
	assert.True(t, rec.Equal(c))
	c.Payload[2] = 'X'
	assert.False(t, rec.Equal(c), "клон не делит буфер нагрузки")

	var nilRec *Record
	assert.Nil(t, nilRec.Clone())
	assert.True(t, nilRec.Equal(nil))
}
