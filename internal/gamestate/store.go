package gamestate

import (
	"sort"
	"sync/atomic"

	"github.com/annel0/commoncore/internal/restorable"
)

// ObjectMap записи объектов, ключ - имя объекта в сцене
type ObjectMap map[string]*restorable.Record

// DataBag непрозрачные данные сцены
type DataBag map[string]interface{}

// Store хранилище состояния сцен. Живёт столько же, сколько файл сохранения,
// заполняется только сохранением сцены и читается только её восстановлением.
// Конкурентный доступ не предусмотрен: сохранение и восстановление выполняются
// последовательно драйвером переходов между сценами.
type Store struct {
	LocalObjectState  map[string]ObjectMap `json:"local_object_state" bson:"local_object_state"`
	MotileObjectState ObjectMap            `json:"motile_object_state" bson:"motile_object_state"`
	PlayerWorldState  *restorable.Record   `json:"player_world_state,omitempty" bson:"player_world_state,omitempty"`
	LocalDataState    map[string]DataBag   `json:"local_data_state" bson:"local_data_state"`
	CurrentScene      string               `json:"current_scene,omitempty" bson:"current_scene,omitempty"`
	LastUID           uint64               `json:"last_uid" bson:"last_uid"`
}

// NewStore создаёт пустое хранилище
func NewStore() *Store {
	s := &Store{}
	s.Normalize()
	return s
}

// Normalize гарантирует, что после загрузки ни одна карта не равна nil
func (s *Store) Normalize() {
	if s.LocalObjectState == nil {
		s.LocalObjectState = make(map[string]ObjectMap)
	}
	for scene, objects := range s.LocalObjectState {
		if objects == nil {
			s.LocalObjectState[scene] = make(ObjectMap)
		}
	}
	if s.MotileObjectState == nil {
		s.MotileObjectState = make(ObjectMap)
	}
	if s.LocalDataState == nil {
		s.LocalDataState = make(map[string]DataBag)
	}
}

// NextUID выдаёт следующий уникальный идентификатор экземпляра
func (s *Store) NextUID() uint64 {
	return atomic.AddUint64(&s.LastUID, 1)
}

// ResetLocalObjects очищает локальный пул сцены и возвращает новую пустую карту.
// Сохранение сцены не инкрементальное: пул каждый раз пишется целиком.
func (s *Store) ResetLocalObjects(scene string) ObjectMap {
	objects, ok := s.LocalObjectState[scene]
	if ok && objects != nil {
		for name := range objects {
			delete(objects, name)
		}
		return objects
	}
	objects = make(ObjectMap)
	s.LocalObjectState[scene] = objects
	return objects
}

// PutLocal записывает blank/dynamic объект в локальный пул сцены
func (s *Store) PutLocal(scene, name string, rec *restorable.Record) {
	objects, ok := s.LocalObjectState[scene]
	if !ok || objects == nil {
		objects = make(ObjectMap)
		s.LocalObjectState[scene] = objects
	}
	objects[name] = rec
}

// LocalObjects возвращает локальный пул сцены
func (s *Store) LocalObjects(scene string) (ObjectMap, bool) {
	objects, ok := s.LocalObjectState[scene]
	return objects, ok
}

// PutMotile записывает мигрирующий объект в глобальный пул.
// Предыдущая запись с тем же именем перезаписывается независимо от сцены.
func (s *Store) PutMotile(name string, rec *restorable.Record) {
	s.MotileObjectState[name] = rec
}

// MotileObjects возвращает глобальный пул мигрирующих объектов
func (s *Store) MotileObjects() ObjectMap {
	return s.MotileObjectState
}

// MotileKeys имена мигрирующих объектов в порядке сортировки
func (s *Store) MotileKeys() []string {
	return s.MotileObjectState.Keys()
}

// SetPlayer перезаписывает слот игрока целиком
func (s *Store) SetPlayer(rec *restorable.Record) {
	s.PlayerWorldState = rec
}

// Player возвращает запись игрока или nil, если игра только начата
func (s *Store) Player() *restorable.Record {
	return s.PlayerWorldState
}

// ReplaceLocalData заменяет данные сцены целиком
func (s *Store) ReplaceLocalData(scene string, bag DataBag) {
	delete(s.LocalDataState, scene)
	s.LocalDataState[scene] = bag
}

// LocalData возвращает данные сцены
func (s *Store) LocalData(scene string) (DataBag, bool) {
	bag, ok := s.LocalDataState[scene]
	return bag, ok
}

// Scenes возвращает имена сцен, у которых есть локальные записи или данные
func (s *Store) Scenes() []string {
	seen := make(map[string]struct{})
	for scene := range s.LocalObjectState {
		seen[scene] = struct{}{}
	}
	for scene := range s.LocalDataState {
		seen[scene] = struct{}{}
	}
	return sortedKeys(seen)
}

// Keys возвращает имена объектов в стабильном порядке
func (m ObjectMap) Keys() []string {
	keys := make([]string, 0, len(m))
	for name := range m {
		keys = append(keys, name)
	}
	sort.Strings(keys)
	return keys
}

// Clone глубоко копирует пул записей
func (m ObjectMap) Clone() ObjectMap {
	if m == nil {
		return nil
	}
	c := make(ObjectMap, len(m))
	for name, rec := range m {
		c[name] = rec.Clone()
	}
	return c
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
