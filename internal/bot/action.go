// ABOUTME: Typed action union for selection tokens carried on buttons
// ABOUTME: Wire form is <operation>_<suffix>, parsed exactly once at the boundary

package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnknownAction is returned for selection tokens with no recognized
// operation prefix
var ErrUnknownAction = errors.New("unknown action")

// ActionKind discriminates the action union
type ActionKind int

const (
	// Browsing
	ActionShowMenus ActionKind = iota
	ActionOpenMenu
	ActionGetArtifact

	// Admin workflow entries
	ActionAdminLogin
	ActionAddMenu
	ActionEditMenu
	ActionDeleteMenu
	ActionUploadArtifact
	ActionAddLink
	ActionManageGates
	ActionAddGate
	ActionEditGate
	ActionDeleteGate
	ActionShowUsers

	// Workflow selections
	ActionSelectMenu
	ActionSelectGate
)

// Action is one decoded selection token. Exactly the fields implied by
// Kind are set: MenuID for OpenMenu/SelectMenu, GateID for SelectGate,
// Token for GetArtifact. Retrieval tokens are opaque strings and are
// never parsed as integer ids.
type Action struct {
	Kind   ActionKind
	MenuID int64
	GateID int64
	Token  string
}

// bare operations with no suffix
var bareOps = map[string]ActionKind{
	"browse":   ActionShowMenus,
	"login":    ActionAdminLogin,
	"addmenu":  ActionAddMenu,
	"editmenu": ActionEditMenu,
	"delmenu":  ActionDeleteMenu,
	"upload":   ActionUploadArtifact,
	"addlink":  ActionAddLink,
	"gates":    ActionManageGates,
	"addgate":  ActionAddGate,
	"editgate": ActionEditGate,
	"delgate":  ActionDeleteGate,
	"users":    ActionShowUsers,
}

// ParseAction decodes a wire selection token into a typed Action.
// The operation prefix is matched before any suffix is interpreted.
func ParseAction(data string) (Action, error) {
	if kind, ok := bareOps[data]; ok {
		return Action{Kind: kind}, nil
	}

	switch {
	case strings.HasPrefix(data, "get_"):
		token := strings.TrimPrefix(data, "get_")
		if token == "" {
			return Action{}, fmt.Errorf("%w: empty retrieval token", ErrUnknownAction)
		}
		return Action{Kind: ActionGetArtifact, Token: token}, nil

	case strings.HasPrefix(data, "menu_"):
		id, err := parseID(strings.TrimPrefix(data, "menu_"))
		if err != nil {
			return Action{}, err
		}
		return Action{Kind: ActionOpenMenu, MenuID: id}, nil

	case strings.HasPrefix(data, "pickmenu_"):
		id, err := parseID(strings.TrimPrefix(data, "pickmenu_"))
		if err != nil {
			return Action{}, err
		}
		return Action{Kind: ActionSelectMenu, MenuID: id}, nil

	case strings.HasPrefix(data, "pickgate_"):
		id, err := parseID(strings.TrimPrefix(data, "pickgate_"))
		if err != nil {
			return Action{}, err
		}
		return Action{Kind: ActionSelectGate, GateID: id}, nil
	}

	return Action{}, fmt.Errorf("%w: %q", ErrUnknownAction, data)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad entity id %q", ErrUnknownAction, s)
	}
	return id, nil
}

// Encode renders the action back to its wire form
func (a Action) Encode() string {
	switch a.Kind {
	case ActionGetArtifact:
		return "get_" + a.Token
	case ActionOpenMenu:
		return fmt.Sprintf("menu_%d", a.MenuID)
	case ActionSelectMenu:
		return fmt.Sprintf("pickmenu_%d", a.MenuID)
	case ActionSelectGate:
		return fmt.Sprintf("pickgate_%d", a.GateID)
	}

	for op, kind := range bareOps {
		if kind == a.Kind {
			return op
		}
	}
	return ""
}
