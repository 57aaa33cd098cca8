package domain

import (
	"encoding/json"
	"fmt"
)

// ActionType discriminates the members of the Action union.
type ActionType string

// Action type discriminator values as they appear on the wire.
const (
	ActionTypeBackup        ActionType = "backup"
	ActionTypeOrganize      ActionType = "organize"
	ActionTypePush          ActionType = "push"
	ActionTypeSelectivePush ActionType = "selective_push"
	ActionTypeCustom        ActionType = "custom"
)

// Action is the operation a task performs when triggered. It is a sealed
// union so the executor's dispatch is statically exhaustive.
type Action interface {
	ActionType() ActionType
	isAction()
}

// BackupOperation selects the direction of a BackupAction.
type BackupOperation string

// Backup operations.
const (
	BackupOperationBackup  BackupOperation = "backup"
	BackupOperationRestore BackupOperation = "restore"
)

// BackupOptions tunes a backup or restore run.
type BackupOptions struct {
	// Snapshot names a specific snapshot file to restore. Empty means the
	// latest available snapshot.
	Snapshot string `json:"snapshot,omitempty"`
	// Folder restricts the backup to a single folder subtree.
	Folder string `json:"folder,omitempty"`
}

// BackupAction uploads the bookmark tree to a remote repository, or restores
// it from a previously uploaded snapshot. Restore runs are only allowed on
// manually triggered tasks.
type BackupAction struct {
	Operation BackupOperation `json:"operation"`
	Target    string          `json:"target"`
	Options   BackupOptions   `json:"options,omitempty"`
}

func (BackupAction) ActionType() ActionType { return ActionTypeBackup }
func (BackupAction) isAction()              {}

// OrganizeOpKind enumerates the organize sub-operations.
type OrganizeOpKind string

// Organize sub-operation kinds.
const (
	OrganizeOpMove     OrganizeOpKind = "move"
	OrganizeOpDelete   OrganizeOpKind = "delete"
	OrganizeOpRename   OrganizeOpKind = "rename"
	OrganizeOpValidate OrganizeOpKind = "validate"
)

// OrganizeFilter narrows an organize sub-operation to matching bookmarks.
// Pattern fields are regular expressions; empty fields match everything.
type OrganizeFilter struct {
	URLPattern    string `json:"urlPattern,omitempty"`
	TitlePattern  string `json:"titlePattern,omitempty"`
	ParentID      string `json:"parentId,omitempty"`
	OlderThanDays int    `json:"olderThanDays,omitempty"`
}

// OrganizeOp is one step of an OrganizeAction. TargetFolderID applies to
// move operations; TitleTemplate applies to rename operations and may
// reference the original title as {title}.
type OrganizeOp struct {
	Kind           OrganizeOpKind `json:"kind"`
	Filter         OrganizeFilter `json:"filter,omitempty"`
	TargetFolderID string         `json:"targetFolderId,omitempty"`
	TitleTemplate  string         `json:"titleTemplate,omitempty"`
}

// OrganizeAction runs an ordered list of sub-operations against the live
// bookmark tree. The action succeeds only when every sub-operation completed
// without per-item failures.
type OrganizeAction struct {
	Operations []OrganizeOp `json:"operations"`
}

func (OrganizeAction) ActionType() ActionType { return ActionTypeOrganize }
func (OrganizeAction) isAction()              {}

// PushAction renders the full bookmark tree to Netscape bookmark HTML and
// uploads it to the target repository path.
type PushAction struct {
	Repo          string `json:"repo"`
	Path          string `json:"path"`
	CommitMessage string `json:"commitMessage,omitempty"`
}

func (PushAction) ActionType() ActionType { return ActionTypePush }
func (PushAction) isAction()              {}

// SelectivePushAction pushes a user-curated subset of bookmarks, in the
// exact order given by BookmarkIDs.
type SelectivePushAction struct {
	Repo          string   `json:"repo"`
	Path          string   `json:"path"`
	CommitMessage string   `json:"commitMessage,omitempty"`
	BookmarkIDs   []string `json:"bookmarkIds"`
}

func (SelectivePushAction) ActionType() ActionType { return ActionTypeSelectivePush }
func (SelectivePushAction) isAction()              {}

// CustomAction delegates to a named handler registered out-of-band, with an
// opaque configuration blob.
type CustomAction struct {
	Handler string          `json:"handler"`
	Config  json.RawMessage `json:"config,omitempty"`
}

func (CustomAction) ActionType() ActionType { return ActionTypeCustom }
func (CustomAction) isAction()              {}

// MarshalAction encodes an action with its type discriminator.
func MarshalAction(a Action) (json.RawMessage, error) {
	if a == nil {
		return nil, fmt.Errorf("%w: action is nil", ErrValidation)
	}
	switch at := a.(type) {
	case BackupAction:
		return json.Marshal(struct {
			Type ActionType `json:"type"`
			BackupAction
		}{ActionTypeBackup, at})
	case OrganizeAction:
		return json.Marshal(struct {
			Type ActionType `json:"type"`
			OrganizeAction
		}{ActionTypeOrganize, at})
	case PushAction:
		return json.Marshal(struct {
			Type ActionType `json:"type"`
			PushAction
		}{ActionTypePush, at})
	case SelectivePushAction:
		return json.Marshal(struct {
			Type ActionType `json:"type"`
			SelectivePushAction
		}{ActionTypeSelectivePush, at})
	case CustomAction:
		return json.Marshal(struct {
			Type ActionType `json:"type"`
			CustomAction
		}{ActionTypeCustom, at})
	default:
		return nil, fmt.Errorf("%w: unknown action type %T", ErrValidation, a)
	}
}

// UnmarshalAction decodes an action envelope back into its concrete member.
func UnmarshalAction(data json.RawMessage) (Action, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: action payload is empty", ErrValidation)
	}
	var env struct {
		Type ActionType `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	switch env.Type {
	case ActionTypeBackup:
		var a BackupAction
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, err
		}
		return a, nil
	case ActionTypeOrganize:
		var a OrganizeAction
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, err
		}
		return a, nil
	case ActionTypePush:
		var a PushAction
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, err
		}
		return a, nil
	case ActionTypeSelectivePush:
		var a SelectivePushAction
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, err
		}
		return a, nil
	case ActionTypeCustom:
		var a CustomAction
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, err
		}
		return a, nil
	default:
		return nil, fmt.Errorf("%w: unknown action type %q", ErrValidation, env.Type)
	}
}
