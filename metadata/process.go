package metadata

import (
	"fmt"

	"github.com/procflow/procflow/model"
)

// ElementRef is a tagged reference to one node of a process definition.
// Exactly one of the typed fields is set, matching Kind.
type ElementRef struct {
	Kind     model.ElementKind
	Event    *model.Event
	Task     *model.Task
	Sequence *model.Sequence
	Gateway  *model.Gateway
}

func (r *ElementRef) Id() string {
	switch r.Kind {
	case model.ELEMENT_EVENT:
		return r.Event.Id
	case model.ELEMENT_ACTIVITY:
		return r.Task.Id
	case model.ELEMENT_SEQUENCE:
		return r.Sequence.Id
	case model.ELEMENT_GATEWAY:
		return r.Gateway.Id
	}
	return ""
}

func (r *ElementRef) Attributes() model.ElementAttributes {
	switch r.Kind {
	case model.ELEMENT_EVENT:
		return r.Event.Attributes
	case model.ELEMENT_ACTIVITY:
		return r.Task.Attributes
	case model.ELEMENT_SEQUENCE:
		return r.Sequence.Attributes
	case model.ELEMENT_GATEWAY:
		return r.Gateway.Attributes
	}
	return model.ElementAttributes{}
}

// OutgoingIds returns the ids the element hands control to: the outgoing
// sequence ids for events, tasks and gateways, or the single target
// element id for a sequence.
func (r *ElementRef) OutgoingIds() []string {
	switch r.Kind {
	case model.ELEMENT_EVENT:
		return r.Event.Outgoing
	case model.ELEMENT_ACTIVITY:
		return r.Task.Outgoing
	case model.ELEMENT_SEQUENCE:
		return []string{r.Sequence.ToId}
	case model.ELEMENT_GATEWAY:
		return r.Gateway.Outgoing
	}
	return nil
}

func (r *ElementRef) IncomingIds() []string {
	switch r.Kind {
	case model.ELEMENT_EVENT:
		return r.Event.Incoming
	case model.ELEMENT_ACTIVITY:
		return r.Task.Incoming
	case model.ELEMENT_SEQUENCE:
		return []string{r.Sequence.FromId}
	case model.ELEMENT_GATEWAY:
		return r.Gateway.Incoming
	}
	return nil
}

// Process is an immutable handle on one process version with element
// lookup and successor resolution over the definition graph.
type Process struct {
	def      model.ProcessDefinition
	elements map[string]*ElementRef
}

// NewProcess indexes a definition. Duplicate element ids and dangling
// edge references are definition errors.
func NewProcess(def model.ProcessDefinition) (*Process, error) {
	p := &Process{
		def:      def,
		elements: make(map[string]*ElementRef),
	}
	for i := range def.Events {
		if err := p.add(def.Events[i].Id, &ElementRef{Kind: model.ELEMENT_EVENT, Event: &def.Events[i]}); err != nil {
			return nil, err
		}
	}
	for i := range def.Tasks {
		if err := p.add(def.Tasks[i].Id, &ElementRef{Kind: model.ELEMENT_ACTIVITY, Task: &def.Tasks[i]}); err != nil {
			return nil, err
		}
	}
	for i := range def.Sequences {
		if err := p.add(def.Sequences[i].Id, &ElementRef{Kind: model.ELEMENT_SEQUENCE, Sequence: &def.Sequences[i]}); err != nil {
			return nil, err
		}
	}
	for i := range def.Gateways {
		if err := p.add(def.Gateways[i].Id, &ElementRef{Kind: model.ELEMENT_GATEWAY, Gateway: &def.Gateways[i]}); err != nil {
			return nil, err
		}
	}
	if err := p.checkEdges(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Process) add(id string, ref *ElementRef) error {
	if id == "" {
		return fmt.Errorf("element with empty id in process %s", p.def.ProcessId)
	}
	if _, ok := p.elements[id]; ok {
		return fmt.Errorf("element id %s is duplicate in process %s", id, p.def.ProcessId)
	}
	p.elements[id] = ref
	return nil
}

func (p *Process) checkEdges() error {
	for _, ref := range p.elements {
		for _, id := range append(ref.OutgoingIds(), ref.IncomingIds()...) {
			if _, ok := p.elements[id]; !ok {
				return fmt.Errorf("element %s references unknown id %s", ref.Id(), id)
			}
		}
		if def := ref.Attributes().Default; def != "" {
			if _, ok := p.elements[def]; !ok {
				return fmt.Errorf("element %s declares unknown default edge %s", ref.Id(), def)
			}
		}
	}
	return nil
}

func (p *Process) Definition() model.ProcessDefinition {
	return p.def
}

func (p *Process) Element(id string) (*ElementRef, error) {
	ref, ok := p.elements[id]
	if !ok {
		return nil, fmt.Errorf("no element with id %s in process %s version %s", id, p.def.ProcessId, p.def.VersionId)
	}
	return ref, nil
}

// Successors resolves the outgoing ids of an element to its successor
// nodes, in declaration order.
func (p *Process) Successors(ref *ElementRef) ([]*ElementRef, error) {
	ids := ref.OutgoingIds()
	succ := make([]*ElementRef, 0, len(ids))
	for _, id := range ids {
		next, err := p.Element(id)
		if err != nil {
			return nil, err
		}
		succ = append(succ, next)
	}
	return succ, nil
}

// CatchingStartEvents returns the start events that listen for an
// external event name; these become the subscriptions of the version.
func (p *Process) CatchingStartEvents() []*model.Event {
	var out []*model.Event
	for i := range p.def.Events {
		ev := &p.def.Events[i]
		if ev.Type == model.EVENT_TYPE_START && ev.Attributes.Event != "" && !ev.Attributes.Throwing {
			out = append(out, ev)
		}
	}
	return out
}
