package worldscene

import (
	"errors"
	"fmt"
	"time"

	"github.com/annel0/commoncore/internal/restorable"
)

var (
	ErrTemplateNotFound   = errors.New("шаблон не найден")
	ErrObjectNotFound     = errors.New("объект отсутствует в сцене")
	ErrMissingComponent   = errors.New("у объекта нет подходящего восстанавливаемого компонента")
	ErrUnknownKind        = errors.New("неизвестный тип восстанавливаемого объекта")
	ErrDuplicatePlayer    = errors.New("игрок уже существует")
	ErrNoPlayerData       = errors.New("нет сохранённых данных игрока")
	ErrNoIntent           = errors.New("нет намерения появления игрока")
	ErrSpawnPointNotFound = errors.New("точка появления не найдена")
	ErrPanic              = errors.New("паника при обработке объекта")
)

// Outcome итог обработки одного объекта
type Outcome int

const (
	OutcomeSaved Outcome = iota
	OutcomeRestored
	OutcomeSpawned
	OutcomeSkipped
	OutcomeWarning
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSaved:
		return "saved"
	case OutcomeRestored:
		return "restored"
	case OutcomeSpawned:
		return "spawned"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeWarning:
		return "warning"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Entry запись отчёта об одном объекте
type Entry struct {
	Name    string          `json:"name"`
	Kind    restorable.Kind `json:"kind"`
	Outcome Outcome         `json:"-"`
	Err     error           `json:"-"`
}

// Report итог сохранения или восстановления сцены.
// Ошибки отдельных объектов накапливаются и никогда не прерывают обработку.
type Report struct {
	Op         string
	Scene      string
	Transition TransitionKind
	Entries    []Entry
	Started    time.Time
	Duration   time.Duration
}

func newReport(op, scene string) *Report {
	return &Report{Op: op, Scene: scene, Started: time.Now()}
}

func (r *Report) add(name string, kind restorable.Kind, outcome Outcome, err error) {
	r.Entries = append(r.Entries, Entry{Name: name, Kind: kind, Outcome: outcome, Err: err})
}

func (r *Report) finish() {
	r.Duration = time.Since(r.Started)
}

// Count число объектов с данным исходом
func (r *Report) Count(outcome Outcome) int {
	n := 0
	for _, e := range r.Entries {
		if e.Outcome == outcome {
			n++
		}
	}
	return n
}

// Find возвращает записи отчёта по имени объекта
func (r *Report) Find(name string) []Entry {
	var out []Entry
	for _, e := range r.Entries {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

// Skipped записи пропущенных объектов
func (r *Report) Skipped() []Entry {
	var out []Entry
	for _, e := range r.Entries {
		if e.Outcome == OutcomeSkipped {
			out = append(out, e)
		}
	}
	return out
}

// Err объединяет все ошибки и предупреждения отчёта (nil, если их нет)
func (r *Report) Err() error {
	var errs []error
	for _, e := range r.Entries {
		if e.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.Name, e.Err))
		}
	}
	return errors.Join(errs...)
}

// HasError сообщает, есть ли в отчёте ошибка, совпадающая с target
func (r *Report) HasError(target error) bool {
	for _, e := range r.Entries {
		if e.Err != nil && errors.Is(e.Err, target) {
			return true
		}
	}
	return false
}

// Reasons количество пропусков и предупреждений по причинам
func (r *Report) Reasons() map[string]int {
	reasons := make(map[string]int)
	for _, e := range r.Entries {
		if e.Err != nil {
			reasons[Reason(e.Err)]++
		}
	}
	return reasons
}

// Reason метка причины для метрик и событий
func Reason(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrTemplateNotFound):
		return "template_not_found"
	case errors.Is(err, ErrObjectNotFound):
		return "object_not_found"
	case errors.Is(err, restorable.ErrKindMismatch):
		return "kind_mismatch"
	case errors.Is(err, ErrMissingComponent):
		return "missing_component"
	case errors.Is(err, ErrUnknownKind):
		return "unknown_kind"
	case errors.Is(err, ErrDuplicatePlayer):
		return "duplicate_player"
	case errors.Is(err, ErrNoPlayerData):
		return "no_player_data"
	case errors.Is(err, ErrNoIntent):
		return "no_intent"
	case errors.Is(err, ErrSpawnPointNotFound):
		return "spawn_point_not_found"
	case errors.Is(err, ErrPanic):
		return "panic"
	case errors.Is(err, restorable.ErrBadPayload):
		return "bad_payload"
	default:
		return "error"
	}
}
