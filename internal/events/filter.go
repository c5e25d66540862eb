package events

// Decision is the filter verdict for one inbound event. Reason is a short
// operator-facing label; it is logged, never returned to the platform.
type Decision struct {
	Forward bool
	Reason  string
}

func drop(reason string) Decision    { return Decision{Forward: false, Reason: reason} }
func forward(reason string) Decision { return Decision{Forward: true, Reason: reason} }

// Filter classifies inbound chat events as eligible for forwarding or not.
// Filtering never fails: any event it cannot place is dropped.
type Filter struct {
	closeFlowConfigured    bool
	transferFlowConfigured bool
}

func NewFilter(closeRoomFlow, transferRoomFlow string) *Filter {
	return &Filter{
		closeFlowConfigured:    closeRoomFlow != "",
		transferFlowConfigured: transferRoomFlow != "",
	}
}

// Decide applies the eligibility rules, cheapest first. No rule performs
// network or store lookups.
func (f *Filter) Decide(ev Event) Decision {
	switch ev.Type {
	case TypeMessage:
		return f.decideMessage(ev)
	case TypeRoomClosed:
		if !f.closeFlowConfigured {
			return drop("no close-room flow configured")
		}
		return forward("room closed")
	case TypeRoomTransferred:
		if !f.transferFlowConfigured {
			return drop("no transfer-room flow configured")
		}
		return forward("room transferred")
	default:
		return drop("unknown event type")
	}
}

func (f *Filter) decideMessage(ev Event) Decision {
	if ev.IsEmptyMessage() {
		return drop("empty message")
	}
	if ev.Sender.HasRole(roleBot) {
		return drop("bot message")
	}

	switch ev.Room.Kind {
	case RoomLivechat:
		if ev.Room.ServedBy == "" {
			return drop("visitor still queued")
		}
		if ev.Sender.HasRole(roleLivechatAgent) {
			return drop("agent message")
		}
		if ev.Room.Visitor == nil || ev.Room.Visitor.Token == "" {
			return drop("livechat room without visitor")
		}
		return forward("visitor message")
	case RoomDirect:
		if len(ev.Room.Usernames) > 2 {
			return drop("group chat")
		}
		if _, ok := ev.Room.Counterpart(ev.Sender); !ok {
			return drop("no counterpart in direct room")
		}
		return forward("direct message")
	default:
		return drop("unsupported room kind")
	}
}
