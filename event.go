package epiworld

import "github.com/pkg/errors"

// EventKind discriminates the eight event handlers (spec.md S9 redesign
// flag: an enum tag with a typed payload dispatched by switch, rather
// than a captured closure per enqueue).
type EventKind int

const (
	EventAddVirus EventKind = iota
	EventRemoveVirus
	EventRemoveAgentByVirus
	EventAddTool
	EventRemoveTool
	EventAddEntity
	EventRemoveEntity
	EventChangeState
)

// Event is one deferred mutation (spec.md S4.6). Not every field applies
// to every kind; handlers only read the fields their kind defines.
type Event struct {
	Kind      EventKind
	AgentID   int
	Virus     *VirusInstance
	Tool      *ToolInstance
	ToolIndex int
	EntityID  int
	NewState  int
	Queue     QueueEffect
}

// eventQueue is the model-owned growable buffer described in spec.md
// S4.6: nactions marks the live prefix so the backing array can be
// reused across flushes without reallocating.
type eventQueue struct {
	buf      []Event
	nactions int
}

func (q *eventQueue) push(e Event) {
	if q.nactions < len(q.buf) {
		q.buf[q.nactions] = e
	} else {
		q.buf = append(q.buf, e)
	}
	q.nactions++
}

func (q *eventQueue) reset() { q.nactions = 0 }

func resolveState(declared int, fallback int) int {
	if declared == UnchangedState {
		return fallback
	}
	return declared
}

func resolveQueue(declared *QueueEffect, fallback QueueEffect) QueueEffect {
	if declared == nil {
		return fallback
	}
	return *declared
}

func (m *Model) enqueueAddVirus(agentID int, v *VirusInstance, newState *int, q *QueueEffect) error {
	if agentID < 0 || agentID >= len(m.agents) {
		return errors.Wrapf(ErrOutOfRange, "agent id %d", agentID)
	}
	ns := UnchangedState
	if newState != nil {
		ns = *newState
	}
	qe := resolveQueue(q, v.def.QueueOnAttach)
	if !qe.Valid() {
		return errors.Wrapf(ErrInvalidArgument, "queue effect %d is not one of the five legal codes", qe)
	}
	m.events.push(Event{Kind: EventAddVirus, AgentID: agentID, Virus: v, NewState: ns, Queue: qe})
	return nil
}

func (m *Model) enqueueRemoveVirus(agentID int, newState *int, q *QueueEffect) error {
	if agentID < 0 || agentID >= len(m.agents) {
		return errors.Wrapf(ErrOutOfRange, "agent id %d", agentID)
	}
	a := m.agents[agentID]
	fallbackState, fallbackQueue := UnchangedState, QueueEffect(NoOne)
	if a.virus != nil {
		fallbackState = a.virus.def.StateOnClear
		fallbackQueue = a.virus.def.QueueOnClear
	}
	ns := UnchangedState
	if newState != nil {
		ns = *newState
	} else {
		ns = fallbackState
	}
	qe := resolveQueue(q, fallbackQueue)
	if !qe.Valid() {
		return errors.Wrapf(ErrInvalidArgument, "queue effect %d is not one of the five legal codes", qe)
	}
	m.events.push(Event{Kind: EventRemoveVirus, AgentID: agentID, NewState: ns, Queue: qe})
	return nil
}

func (m *Model) enqueueRemoveAgentByVirus(agentID int, newState *int, q *QueueEffect) error {
	if agentID < 0 || agentID >= len(m.agents) {
		return errors.Wrapf(ErrOutOfRange, "agent id %d", agentID)
	}
	a := m.agents[agentID]
	fallbackState, fallbackQueue := UnchangedState, QueueEffect(NoOne)
	if a.virus != nil {
		fallbackState = a.virus.def.StateOnRemoval
		fallbackQueue = a.virus.def.QueueOnRemoval
	}
	ns := UnchangedState
	if newState != nil {
		ns = *newState
	} else {
		ns = fallbackState
	}
	qe := resolveQueue(q, fallbackQueue)
	if !qe.Valid() {
		return errors.Wrapf(ErrInvalidArgument, "queue effect %d is not one of the five legal codes", qe)
	}
	m.events.push(Event{Kind: EventRemoveAgentByVirus, AgentID: agentID, NewState: ns, Queue: qe})
	return nil
}

func (m *Model) enqueueAddTool(agentID int, t *ToolInstance, newState *int, q *QueueEffect) error {
	if agentID < 0 || agentID >= len(m.agents) {
		return errors.Wrapf(ErrOutOfRange, "agent id %d", agentID)
	}
	ns := UnchangedState
	if newState != nil {
		ns = *newState
	}
	qe := resolveQueue(q, t.def.QueueOnAttach)
	if !qe.Valid() {
		return errors.Wrapf(ErrInvalidArgument, "queue effect %d is not one of the five legal codes", qe)
	}
	m.events.push(Event{Kind: EventAddTool, AgentID: agentID, Tool: t, NewState: ns, Queue: qe})
	return nil
}

func (m *Model) enqueueRemoveTool(agentID int, k int, newState *int, q *QueueEffect) error {
	if agentID < 0 || agentID >= len(m.agents) {
		return errors.Wrapf(ErrOutOfRange, "agent id %d", agentID)
	}
	a := m.agents[agentID]
	if k < 0 || k >= len(a.tools) {
		return errors.Wrapf(ErrOutOfRange, "tool index %d on agent %d", k, agentID)
	}
	fallback := a.tools[k].def.QueueOnRemoval
	ns := UnchangedState
	if newState != nil {
		ns = *newState
	} else {
		ns = a.tools[k].def.StateOnRemoval
	}
	qe := resolveQueue(q, fallback)
	if !qe.Valid() {
		return errors.Wrapf(ErrInvalidArgument, "queue effect %d is not one of the five legal codes", qe)
	}
	m.events.push(Event{Kind: EventRemoveTool, AgentID: agentID, ToolIndex: k, NewState: ns, Queue: qe})
	return nil
}

func (m *Model) enqueueAddEntity(agentID, entityID int) error {
	if agentID < 0 || agentID >= len(m.agents) {
		return errors.Wrapf(ErrOutOfRange, "agent id %d", agentID)
	}
	if entityID < 0 || entityID >= len(m.entities) {
		return errors.Wrapf(ErrOutOfRange, "entity id %d", entityID)
	}
	m.events.push(Event{Kind: EventAddEntity, AgentID: agentID, EntityID: entityID, NewState: UnchangedState})
	return nil
}

func (m *Model) enqueueRemoveEntity(agentID, entityID int) error {
	if agentID < 0 || agentID >= len(m.agents) {
		return errors.Wrapf(ErrOutOfRange, "agent id %d", agentID)
	}
	if entityID < 0 || entityID >= len(m.entities) {
		return errors.Wrapf(ErrOutOfRange, "entity id %d", entityID)
	}
	m.events.push(Event{Kind: EventRemoveEntity, AgentID: agentID, EntityID: entityID, NewState: UnchangedState})
	return nil
}

func (m *Model) enqueueChangeState(agentID, newState int, q *QueueEffect) error {
	if agentID < 0 || agentID >= len(m.agents) {
		return errors.Wrapf(ErrOutOfRange, "agent id %d", agentID)
	}
	qe := resolveQueue(q, NoOne)
	if !qe.Valid() {
		return errors.Wrapf(ErrInvalidArgument, "queue effect %d is not one of the five legal codes", qe)
	}
	m.events.push(Event{Kind: EventChangeState, AgentID: agentID, NewState: newState, Queue: qe})
	return nil
}

// flush applies every queued event in submission order, then clears the
// queue. Handlers may not enqueue events that run within the same
// flush pass (spec.md S4.6); any enqueues they perform are picked up by
// the next explicit flush call.
func (m *Model) flush() error {
	n := m.events.nactions
	for i := 0; i < n; i++ {
		e := m.events.buf[i]
		if e.NewState != UnchangedState && (e.NewState < 0 || e.NewState >= m.nstates) {
			return errors.Wrapf(ErrInvalidArgument, "new_state %d outside [0,%d)", e.NewState, m.nstates)
		}
		var err error
		switch e.Kind {
		case EventAddVirus:
			err = m.applyAddVirus(e)
		case EventRemoveVirus:
			err = m.applyRemoveVirus(e)
		case EventRemoveAgentByVirus:
			err = m.applyRemoveAgentByVirus(e)
		case EventAddTool:
			err = m.applyAddTool(e)
		case EventRemoveTool:
			err = m.applyRemoveTool(e)
		case EventAddEntity:
			err = m.applyAddEntity(e)
		case EventRemoveEntity:
			err = m.applyRemoveEntity(e)
		case EventChangeState:
			err = m.applyChangeState(e)
		}
		if err != nil {
			return err
		}
	}
	rest := copy(m.events.buf, m.events.buf[n:m.events.nactions])
	m.events.nactions = rest
	return nil
}

// beginStateChange undoes today's transition-matrix record for a if it
// already moved once today (step 1 of spec.md S4.6).
func (m *Model) beginStateChange(a *Agent) {
	if a.state != a.statePrev {
		m.db.TransitionMove(a.state, a.statePrev, -1)
		m.db.DiagonalMove(a.statePrev, 1)
	}
}

// commitStateChange sets a's new state and records the move (steps 3-4
// of spec.md S4.6). old must be the state captured before any mutation
// in this handler.
func (m *Model) commitStateChange(a *Agent, old, newState int) {
	a.state = newState
	a.stateLastChanged = m.today
	m.db.TotalMove(old, newState)
	if newState != a.statePrev {
		m.db.TransitionMove(newState, a.statePrev, 1)
		m.db.DiagonalMove(a.statePrev, -1)
	}
}

// applyQueueEffect applies step 5: the queue-effect code to the
// activation mask.
func (m *Model) applyQueueEffect(a *Agent, q QueueEffect) {
	switch q {
	case NoOne:
	case OnlySelf:
		m.queueMask[a.id]++
	case -OnlySelf:
		m.queueMask[a.id]--
	case Everyone:
		m.queueMask[a.id]++
		for _, nb := range a.neighbors {
			m.queueMask[nb]++
		}
	case -Everyone:
		m.queueMask[a.id]--
		for _, nb := range a.neighbors {
			m.queueMask[nb]--
		}
	}
}

func stratifyVirus(m *Model, oldV, newV *VirusInstance, oldState, newState int) {
	if oldV != nil && oldV.id >= 0 {
		m.db.VirusDec(oldV.id, oldState)
	}
	if newV != nil && newV.id >= 0 {
		m.db.VirusInc(newV.id, newState)
	}
}

func containsTool(list []*ToolInstance, t *ToolInstance) bool {
	for _, x := range list {
		if x == t {
			return true
		}
	}
	return false
}

func stratifyTools(m *Model, oldTools, newTools []*ToolInstance, oldState, newState int) {
	for _, t := range oldTools {
		if t.id < 0 {
			continue
		}
		m.db.ToolDec(t.id, oldState)
	}
	for _, t := range newTools {
		if t.id < 0 {
			continue
		}
		m.db.ToolInc(t.id, newState)
	}
}

func (m *Model) applyAddVirus(e Event) error {
	a := m.agents[e.AgentID]
	newState := resolveState(e.NewState, e.Virus.def.StateOnAttach)
	newState = resolveState(newState, a.state)
	old := a.state
	changed := newState != old

	if changed {
		m.beginStateChange(a)
	}

	oldVirus := a.virus
	oldToolsSnapshot := append([]*ToolInstance(nil), a.tools...)

	e.Virus.host = a.id
	e.Virus.dateAcquired = m.today
	if e.Virus.id < 0 {
		e.Virus.id = m.db.RegisterVirus(e.Virus.def.Name, e.Virus.parentID, m.today)
	}
	a.virus = e.Virus

	if changed {
		m.commitStateChange(a, old, newState)
	}

	stratifyVirus(m, oldVirus, a.virus, old, a.state)
	stratifyTools(m, oldToolsSnapshot, a.tools, old, a.state)
	m.applyQueueEffect(a, e.Queue)
	return nil
}

func (m *Model) applyRemoveVirus(e Event) error {
	a := m.agents[e.AgentID]
	if a.virus == nil {
		return nil
	}
	fallback := a.virus.def.StateOnClear
	newState := resolveState(e.NewState, fallback)
	newState = resolveState(newState, a.state)
	old := a.state
	changed := newState != old

	if changed {
		m.beginStateChange(a)
	}

	oldVirus := a.virus
	oldVirus.host = -1
	post := oldVirus.def.PostRecovery
	a.virus = nil

	if changed {
		m.commitStateChange(a, old, newState)
	}

	stratifyVirus(m, oldVirus, nil, old, a.state)
	m.applyQueueEffect(a, e.Queue)

	if post != nil {
		post(a, oldVirus, m)
	}
	return nil
}

func (m *Model) applyRemoveAgentByVirus(e Event) error {
	a := m.agents[e.AgentID]
	if a.virus == nil {
		return nil
	}
	fallback := a.virus.def.StateOnRemoval
	newState := resolveState(e.NewState, fallback)
	newState = resolveState(newState, a.state)
	old := a.state
	changed := newState != old

	if changed {
		m.beginStateChange(a)
	}

	oldVirus := a.virus
	oldVirus.host = -1
	a.virus = nil

	if changed {
		m.commitStateChange(a, old, newState)
	}

	stratifyVirus(m, oldVirus, nil, old, a.state)
	m.applyQueueEffect(a, e.Queue)
	return nil
}

func (m *Model) applyAddTool(e Event) error {
	a := m.agents[e.AgentID]
	newState := resolveState(e.NewState, e.Tool.def.StateOnAttach)
	newState = resolveState(newState, a.state)
	old := a.state
	changed := newState != old

	if changed {
		m.beginStateChange(a)
	}

	oldTools := append([]*ToolInstance(nil), a.tools...)
	if e.Tool.id < 0 {
		e.Tool.id = m.db.RegisterTool(e.Tool.def.Name, m.today)
	}
	e.Tool.host = a.id
	e.Tool.dateAcquired = m.today
	a.tools = append(a.tools, e.Tool)

	if changed {
		m.commitStateChange(a, old, newState)
	}

	stratifyTools(m, oldTools, a.tools, old, a.state)
	m.applyQueueEffect(a, e.Queue)
	return nil
}

func (m *Model) applyRemoveTool(e Event) error {
	a := m.agents[e.AgentID]
	if e.ToolIndex < 0 || e.ToolIndex >= len(a.tools) {
		return errors.Wrapf(ErrInvariantViolated, "agent %d has no tool at index %d", a.id, e.ToolIndex)
	}
	removed := a.tools[e.ToolIndex]
	fallback := removed.def.StateOnRemoval
	newState := resolveState(e.NewState, fallback)
	newState = resolveState(newState, a.state)
	old := a.state
	changed := newState != old

	if changed {
		m.beginStateChange(a)
	}

	oldTools := append([]*ToolInstance(nil), a.tools...)
	a.tools = append(a.tools[:e.ToolIndex], a.tools[e.ToolIndex+1:]...)
	removed.host = -1

	if changed {
		m.commitStateChange(a, old, newState)
	}

	stratifyTools(m, oldTools, a.tools, old, a.state)
	m.applyQueueEffect(a, e.Queue)
	return nil
}

func (m *Model) applyAddEntity(e Event) error {
	a := m.agents[e.AgentID]
	ent := m.entities[e.EntityID]
	backSlot := len(ent.members)
	ent.members = append(ent.members, a.id)
	ent.backIdx = append(ent.backIdx, len(a.entities))
	a.addEntityMembership(e.EntityID, backSlot)
	return nil
}

func (m *Model) applyRemoveEntity(e Event) error {
	a := m.agents[e.AgentID]
	slot := -1
	for i, id := range a.entities {
		if id == e.EntityID {
			slot = i
			break
		}
	}
	if slot == -1 {
		return errors.Wrapf(ErrInvariantViolated, "agent %d is not a member of entity %d", a.id, e.EntityID)
	}
	ent := m.entities[e.EntityID]
	memberSlot := a.entityBack[slot]
	if memberSlot < 0 || memberSlot >= len(ent.members) || ent.members[memberSlot] != a.id {
		return errors.Wrapf(ErrInvariantViolated, "back-index mismatch removing agent %d from entity %d", a.id, e.EntityID)
	}
	last := len(ent.members) - 1
	ent.members[memberSlot] = ent.members[last]
	ent.members = ent.members[:last]
	ent.backIdx[memberSlot] = ent.backIdx[last]
	ent.backIdx = ent.backIdx[:last]
	if memberSlot < len(ent.members) {
		movedAgent := m.agents[ent.members[memberSlot]]
		for i, id := range movedAgent.entities {
			if id == e.EntityID {
				movedAgent.entityBack[i] = memberSlot
				break
			}
		}
	}
	a.entities = append(a.entities[:slot], a.entities[slot+1:]...)
	a.entityBack = append(a.entityBack[:slot], a.entityBack[slot+1:]...)
	for k := slot; k < len(a.entities); k++ {
		m.entities[a.entities[k]].backIdx[a.entityBack[k]] = k
	}
	return nil
}

func (m *Model) applyChangeState(e Event) error {
	a := m.agents[e.AgentID]
	newState := resolveState(e.NewState, a.state)
	old := a.state
	if newState == old {
		m.applyQueueEffect(a, e.Queue)
		return nil
	}
	m.beginStateChange(a)
	m.commitStateChange(a, old, newState)
	if a.virus != nil {
		stratifyVirus(m, a.virus, a.virus, old, a.state)
	}
	if len(a.tools) > 0 {
		stratifyTools(m, a.tools, a.tools, old, a.state)
	}
	m.applyQueueEffect(a, e.Queue)
	return nil
}
