package console

import (
	"errors"
	"net/http"
	"time"

	"github.com/annel0/commoncore/internal/gamestate"
	"github.com/annel0/commoncore/internal/restorable"
	"github.com/annel0/commoncore/internal/scene"
	"github.com/annel0/commoncore/internal/storage"
	"github.com/annel0/commoncore/internal/vec"
	"github.com/annel0/commoncore/internal/worldscene"
	"github.com/gin-gonic/gin"
)

// GenericResponse представляет общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// IntentRequest намерение появления игрока.
// spawn_point: имя точки, "" - точка по умолчанию; без него используются position/rotation.
type IntentRequest struct {
	SpawnPoint *string   `json:"spawn_point"`
	Position   *vec.Vec3 `json:"position"`
	Rotation   *vec.Quat `json:"rotation"`
}

// TransitionRequest запрос перехода в другую сцену
type TransitionRequest struct {
	Scene string `json:"scene" binding:"required"`
	IntentRequest
}

func (r IntentRequest) intent() *worldscene.PlayerIntent {
	switch {
	case r.SpawnPoint != nil:
		return worldscene.SpawnAt(*r.SpawnPoint)
	case r.Position != nil:
		rot := vec.IdentityQuat
		if r.Rotation != nil {
			rot = *r.Rotation
		}
		return worldscene.PlaceAt(*r.Position, rot)
	default:
		return nil
	}
}

// EntryView запись отчёта
type EntryView struct {
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	Outcome string `json:"outcome"`
	Error   string `json:"error,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// ReportView отчёт сохранения или восстановления
type ReportView struct {
	Op         string      `json:"op"`
	Scene      string      `json:"scene"`
	Transition string      `json:"transition,omitempty"`
	Saved      int         `json:"saved"`
	Restored   int         `json:"restored"`
	Spawned    int         `json:"spawned"`
	Skipped    int         `json:"skipped"`
	Warnings   int         `json:"warnings"`
	DurationMs float64     `json:"duration_ms"`
	Entries    []EntryView `json:"entries"`
}

func newReportView(rep *worldscene.Report) *ReportView {
	if rep == nil {
		return nil
	}
	v := &ReportView{
		Op:         rep.Op,
		Scene:      rep.Scene,
		Saved:      rep.Count(worldscene.OutcomeSaved),
		Restored:   rep.Count(worldscene.OutcomeRestored),
		Spawned:    rep.Count(worldscene.OutcomeSpawned),
		Skipped:    rep.Count(worldscene.OutcomeSkipped),
		Warnings:   rep.Count(worldscene.OutcomeWarning),
		DurationMs: float64(rep.Duration.Microseconds()) / 1000,
		Entries:    make([]EntryView, 0, len(rep.Entries)),
	}
	if rep.Op == "restore" {
		v.Transition = rep.Transition.String()
	}
	for _, e := range rep.Entries {
		ev := EntryView{Name: e.Name, Kind: e.Kind.String(), Outcome: e.Outcome.String()}
		if e.Err != nil {
			ev.Error = e.Err.Error()
			ev.Reason = worldscene.Reason(e.Err)
		}
		v.Entries = append(v.Entries, ev)
	}
	return v
}

// ObjectView объект активной сцены
type ObjectView struct {
	Name       string                 `json:"name"`
	Tag        string                 `json:"tag,omitempty"`
	Parent     string                 `json:"parent,omitempty"`
	Depth      int                    `json:"depth"`
	Active     bool                   `json:"active"`
	Restorable string                 `json:"restorable,omitempty"`
	Transform  vec.Transform          `json:"transform"`
	Data       map[string]interface{} `json:"data,omitempty"`
}

// RecordView сохранённая запись
type RecordView struct {
	Name    string          `json:"name,omitempty"`
	Kind    restorable.Kind `json:"kind"`
	FormID  string          `json:"form_id,omitempty"`
	Scene   string          `json:"scene,omitempty"`
	Payload interface{}     `json:"payload,omitempty"`
}

func newRecordView(name string, rec *restorable.Record) RecordView {
	v := RecordView{Name: name, Kind: rec.Kind, FormID: rec.FormID, Scene: rec.Scene}
	if len(rec.Payload) > 0 {
		v.Payload = rec.Payload
	}
	return v
}

func recordViews(objects gamestate.ObjectMap) []RecordView {
	out := make([]RecordView, 0, len(objects))
	for _, name := range objects.Keys() {
		if rec := objects[name]; rec != nil {
			out = append(out, newRecordView(name, rec))
		}
	}
	return out
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().Unix(),
	})
}

// handleServerInfo возвращает информацию о процессе консоли
func (s *Server) handleServerInfo(c *gin.Context) {
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Информация о сервере",
		Data: gin.H{
			"version": Version,
			"name":    "CommonCore World State Console",
			"status":  "running",
			"process": s.metrics.Snapshot(),
		},
	})
}

// handleState сводка хранилища состояния и активной сцены
func (s *Server) handleState(c *gin.Context) {
	var data gin.H
	s.session.view(func(store *gamestate.Store, active *worldscene.Controller, meta *worldscene.MetaState, last *worldscene.Report) {
		localCounts := make(map[string]int)
		for _, name := range store.Scenes() {
			objects, _ := store.LocalObjects(name)
			localCounts[name] = len(objects)
		}
		activeScene := ""
		if active != nil {
			activeScene = active.Scene()
		}
		data = gin.H{
			"active_scene":   activeScene,
			"current_scene":  store.CurrentScene,
			"previous_scene": meta.PreviousScene,
			"transition":     meta.TransitionType.String(),
			"local_objects":  localCounts,
			"motile_objects": len(store.MotileObjects()),
			"has_player":     store.Player() != nil,
			"last_uid":       store.LastUID,
			"last_report":    newReportView(last),
		}
	})
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Состояние сессии", Data: data})
}

func (s *Server) handleScenes(c *gin.Context) {
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Сцены", Data: s.session.Scenes()})
}

// handleSceneObjects объекты активной сцены (живые) или сохранённые записи неактивной
func (s *Server) handleSceneObjects(c *gin.Context) {
	name := c.Param("scene")
	var (
		data   interface{}
		status = http.StatusOK
		msg    = "Объекты сцены"
	)

	s.session.view(func(store *gamestate.Store, active *worldscene.Controller, _ *worldscene.MetaState, _ *worldscene.Report) {
		if active != nil && active.Scene() == name {
			if g, ok := active.Graph().(*scene.Graph); ok {
				data = liveObjects(g)
				return
			}
		}
		objects, ok := store.LocalObjects(name)
		if !ok {
			status, msg = http.StatusNotFound, "Нет данных сцены "+name
			return
		}
		data = recordViews(objects)
		msg = "Сохранённые записи сцены"
	})

	c.JSON(status, GenericResponse{Success: status == http.StatusOK, Message: msg, Data: data})
}

func liveObjects(g *scene.Graph) []ObjectView {
	var out []ObjectView
	g.Walk(func(n *scene.Node, depth int) {
		v := ObjectView{
			Name:      n.Name(),
			Tag:       n.Tag(),
			Depth:     depth,
			Active:    n.Active(),
			Transform: n.Transform(),
			Data:      n.Data(),
		}
		if p := n.Parent(); p != nil && p != g.Root() {
			v.Parent = p.Name()
		}
		if rc, ok := n.Restorable(); ok {
			v.Restorable = rc.Kind().String()
		}
		out = append(out, v)
	})
	return out
}

func (s *Server) handleMotile(c *gin.Context) {
	var data []RecordView
	s.session.view(func(store *gamestate.Store, _ *worldscene.Controller, _ *worldscene.MetaState, _ *worldscene.Report) {
		data = recordViews(store.MotileObjects())
	})
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Мигрирующие объекты", Data: data})
}

func (s *Server) handlePlayer(c *gin.Context) {
	var rec *restorable.Record
	s.session.view(func(store *gamestate.Store, _ *worldscene.Controller, _ *worldscene.MetaState, _ *worldscene.Report) {
		rec = store.Player()
	})
	if rec == nil {
		c.JSON(http.StatusNotFound, GenericResponse{Success: false, Message: "Нет сохранённых данных игрока"})
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Игрок", Data: newRecordView("", rec)})
}

func (s *Server) handleSaveScene(c *gin.Context) {
	rep, err := s.session.SaveScene(c.Request.Context(), c.Param("scene"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Сцена сохранена", Data: newReportView(rep)})
}

func (s *Server) handleNewGame(c *gin.Context) {
	var req TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{Success: false, Message: "Неверный формат запроса"})
		return
	}
	rep, err := s.session.NewGame(c.Request.Context(), req.Scene, req.intent())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Новая игра", Data: newReportView(rep)})
}

func (s *Server) handleTransition(c *gin.Context) {
	var req TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{Success: false, Message: "Неверный формат запроса"})
		return
	}
	rep, err := s.session.Transition(c.Request.Context(), req.Scene, req.intent())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Переход выполнен", Data: newReportView(rep)})
}

func (s *Server) handleListSlots(c *gin.Context) {
	slots, err := s.session.ListSlots(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	if slots == nil {
		slots = []storage.SlotInfo{}
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Слоты", Data: slots})
}

func (s *Server) handleSaveSlot(c *gin.Context) {
	info, err := s.session.SaveSlot(c.Request.Context(), c.Param("slot"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Слот сохранён", Data: info})
}

func (s *Server) handleLoadSlot(c *gin.Context) {
	rep, err := s.session.LoadSlot(c.Request.Context(), c.Param("slot"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Слот загружен", Data: newReportView(rep)})
}

// fail переводит ошибку сессии в HTTP-статус
func (s *Server) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrUnknownScene), errors.Is(err, storage.ErrSlotNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrNoActiveScene):
		status = http.StatusConflict
	case errors.Is(err, storage.ErrInvalidSlot):
		status = http.StatusBadRequest
	case errors.Is(err, storage.ErrChecksumMismatch), errors.Is(err, storage.ErrBadFormat):
		status = http.StatusUnprocessableEntity
	}
	if status == http.StatusInternalServerError {
		s.log.Error("❌ %s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, GenericResponse{Success: false, Message: err.Error()})
}
