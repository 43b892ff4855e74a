package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestMongoSlot_DocumentLayout(t *testing.T) {
	data, info, err := encodeStore("quick", sampleStore())
	if err != nil {
		t.Fatalf("Ошибка кодирования: %v", err)
	}
	raw, err := bson.Marshal(mongoSlot{SlotInfo: *info, Data: data})
	if err != nil {
		t.Fatalf("Ошибка сериализации документа: %v", err)
	}
	doc := bson.Raw(raw)

	if got := doc.Lookup("slot").StringValue(); got != "quick" {
		t.Errorf("slot = %q", got)
	}
	if got := doc.Lookup("save_id").StringValue(); got != info.ID {
		t.Errorf("save_id = %q, ожидался %q", got, info.ID)
	}
	if got := doc.Lookup("current_scene").StringValue(); got != "Town" {
		t.Errorf("current_scene = %q", got)
	}
	if typ := doc.Lookup("saved_at").Type; typ != bsontype.DateTime {
		t.Errorf("saved_at хранится как %v", typ)
	}
	if typ := doc.Lookup("data").Type; typ != bsontype.Binary {
		t.Errorf("data хранится как %v", typ)
	}
	// сведения о слоте лежат на верхнем уровне документа
	if _, err := doc.LookupErr("slotinfo"); err == nil {
		t.Error("SlotInfo не должен быть вложенным документом")
	}
}

func newMockMongoRepo(mt *mtest.T) *MongoRepo {
	return &MongoRepo{client: mt.Client, collection: mt.Coll, ctxTimeout: 5 * time.Second}
}

func TestMongoRepo(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("Save", func(mt *mtest.T) {
		repo := newMockMongoRepo(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		info, err := repo.Save(context.Background(), "quick", sampleStore())
		if err != nil {
			mt.Fatalf("Ошибка сохранения слота: %v", err)
		}
		if info.Slot != "quick" || info.CurrentScene != "Town" {
			mt.Errorf("Неверные сведения о слоте: %+v", info)
		}
	})

	mt.Run("Load", func(mt *mtest.T) {
		repo := newMockMongoRepo(mt)
		data, info, err := encodeStore("quick", sampleStore())
		if err != nil {
			mt.Fatalf("Ошибка кодирования: %v", err)
		}
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{
			{Key: "slot", Value: "quick"},
			{Key: "save_id", Value: info.ID},
			{Key: "current_scene", Value: "Town"},
			{Key: "data", Value: data},
		}))

		store, found, err := repo.Load(context.Background(), "quick")
		if err != nil || !found {
			mt.Fatalf("Слот не загружен: found=%v err=%v", found, err)
		}
		if store.CurrentScene != "Town" || store.Player() == nil {
			mt.Errorf("Состояние восстановлено неверно: %+v", store)
		}
	})

	mt.Run("Load missing", func(mt *mtest.T) {
		repo := newMockMongoRepo(mt)
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		_, found, err := repo.Load(context.Background(), "missing")
		if err != nil || found {
			mt.Errorf("Отсутствующий слот: found=%v err=%v", found, err)
		}
	})

	mt.Run("Delete missing", func(mt *mtest.T) {
		repo := newMockMongoRepo(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}))

		if err := repo.Delete(context.Background(), "gone"); !errors.Is(err, ErrSlotNotFound) {
			mt.Errorf("Ожидалась ErrSlotNotFound, получено: %v", err)
		}
	})

	mt.Run("List", func(mt *mtest.T) {
		repo := newMockMongoRepo(mt)
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		savedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			bson.D{{Key: "slot", Value: "auto"}, {Key: "save_id", Value: "id-1"},
				{Key: "current_scene", Value: "Harbor"}, {Key: "saved_at", Value: savedAt}, {Key: "size", Value: 120}},
			bson.D{{Key: "slot", Value: "quick"}, {Key: "save_id", Value: "id-2"},
				{Key: "current_scene", Value: "Town"}, {Key: "saved_at", Value: savedAt}, {Key: "size", Value: 96}},
		))

		slots, err := repo.List(context.Background())
		if err != nil {
			mt.Fatalf("Ошибка получения списка слотов: %v", err)
		}
		if len(slots) != 2 {
			mt.Fatalf("Ожидалось 2 слота, получено %d", len(slots))
		}
		if slots[0].Slot != "auto" || slots[0].ID != "id-1" || slots[0].Size != 120 {
			mt.Errorf("Неверный первый слот: %+v", slots[0])
		}
		if !slots[1].SavedAt.Equal(savedAt) {
			mt.Errorf("Неверное время сохранения: %v", slots[1].SavedAt)
		}
	})
}
