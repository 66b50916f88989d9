package epiworld

// Agent is one simulated individual (spec.md S4.4). Its graph and entity
// memberships are stored as parallel back-indexed slices so removal from
// a neighbor's or entity's list is O(1): neighborBack[i] holds the slot
// inside neighbors[i]'s own adjacency list that points back at this
// agent (invariant A1), and entityBack[i] is the analogous slot inside
// entities[i]'s member list.
//
// Every mutating call below enqueues a single Event on the owning
// Model's queue rather than mutating Agent fields directly; the queue is
// flushed at the four points spec.md S4.6 names. This keeps one agent's
// updater from observing another agent's in-progress change mid-step.
type Agent struct {
	id    int
	model *Model

	state            int
	statePrev        int
	stateLastChanged int

	virus *VirusInstance
	tools []*ToolInstance

	neighbors    []int
	neighborBack []int

	entities    []int
	entityBack  []int
}

// NewAgent creates an agent with no graph or entity memberships, in
// state 0. Its id and model back-reference are assigned when added to a
// Model's population.
func NewAgent() *Agent {
	return &Agent{id: -1}
}

// ID returns the agent's index within its Model's population.
func (a *Agent) ID() int { return a.id }

// State returns the agent's current state id.
func (a *Agent) State() int { return a.state }

// StatePrev returns the state the agent held at the start of the current
// day, used by the database to anchor today's transition-matrix row.
func (a *Agent) StatePrev() int { return a.statePrev }

// StateLastChanged returns the model day the agent's state last changed,
// or -1 if it has never changed.
func (a *Agent) StateLastChanged() int { return a.stateLastChanged }

// Virus returns the agent's carried virus instance, or nil (invariant
// A3: at most one active virus per agent).
func (a *Agent) Virus() *VirusInstance { return a.virus }

// HasVirus reports whether the agent currently carries an active virus.
func (a *Agent) HasVirus() bool { return a.virus != nil }

// Tools returns the agent's carried tool instances in attachment order.
// The returned slice must not be mutated by the caller.
func (a *Agent) Tools() []*ToolInstance { return a.tools }

// Neighbors returns the agent's contact-graph neighbor ids in insertion
// order. The returned slice must not be mutated by the caller.
func (a *Agent) Neighbors() []int { return a.neighbors }

// Degree returns len(Neighbors()).
func (a *Agent) Degree() int { return len(a.neighbors) }

// Entities returns the ids of entities this agent belongs to.
func (a *Agent) Entities() []int { return a.entities }

// addNeighbor appends b to this agent's adjacency list and records the
// slot b must use to point back, maintaining invariant A1. Called only
// by Model.syncAgentNeighbors, at construction and after every rewire.
func (a *Agent) addNeighbor(b int, backSlot int) {
	a.neighbors = append(a.neighbors, b)
	a.neighborBack = append(a.neighborBack, backSlot)
}

// addEntityMembership records that this agent joined entity e at slot
// inside e's member list.
func (a *Agent) addEntityMembership(e int, slot int) {
	a.entities = append(a.entities, e)
	a.entityBack = append(a.entityBack, slot)
}

// SetVirus enqueues an add-virus event. newState and q may be nil to
// request the virus definition's declared StateOnAttach/QueueOnAttach
// defaults (spec.md S4.4: "any omitted new_state or queue argument is
// filled from the attached object's declared defaults").
func (a *Agent) SetVirus(v *VirusInstance, newState *int, q *QueueEffect) error {
	return a.model.enqueueAddVirus(a.id, v, newState, q)
}

// RemoveVirus enqueues a remove-virus event, clearing the agent's
// currently carried virus, if any.
func (a *Agent) RemoveVirus(newState *int, q *QueueEffect) error {
	return a.model.enqueueRemoveVirus(a.id, newState, q)
}

// RemoveAgentByVirus enqueues a virus-induced removal (e.g. death),
// clearing the carried virus and moving the agent to a terminal state.
func (a *Agent) RemoveAgentByVirus(newState *int, q *QueueEffect) error {
	return a.model.enqueueRemoveAgentByVirus(a.id, newState, q)
}

// AddTool enqueues an add-tool event.
func (a *Agent) AddTool(t *ToolInstance, newState *int, q *QueueEffect) error {
	return a.model.enqueueAddTool(a.id, t, newState, q)
}

// RemoveTool enqueues a remove-tool event for the k-th carried tool.
func (a *Agent) RemoveTool(k int, newState *int, q *QueueEffect) error {
	return a.model.enqueueRemoveTool(a.id, k, newState, q)
}

// AddEntity enqueues an entity-membership event.
func (a *Agent) AddEntity(entityID int) error {
	return a.model.enqueueAddEntity(a.id, entityID)
}

// RemoveEntity enqueues an entity-membership removal event.
func (a *Agent) RemoveEntity(entityID int) error {
	return a.model.enqueueRemoveEntity(a.id, entityID)
}

// ChangeState enqueues a bare state change with no accompanying
// virus/tool/entity mutation.
func (a *Agent) ChangeState(newState int, q *QueueEffect) error {
	return a.model.enqueueChangeState(a.id, newState, q)
}
