package pkclient

import (
	"context"
	"strings"

	"github.com/pushkit/go-client-sdk/pktaggroups"
)

// TagGroupsEditor collects tag-group edits for the channel or the named user. Nothing changes until
// Apply is called.
type TagGroupsEditor struct {
	client    *Client
	tagType   pktaggroups.Type
	mutations []pktaggroups.Mutation
}

// EditChannelTags returns an editor for the channel's tag groups.
func (c *Client) EditChannelTags() *TagGroupsEditor {
	return &TagGroupsEditor{client: c, tagType: pktaggroups.ChannelType}
}

// EditNamedUserTags returns an editor for the named user's tag groups.
func (c *Client) EditNamedUserTags() *TagGroupsEditor {
	return &TagGroupsEditor{client: c, tagType: pktaggroups.NamedUserType}
}

// AddTags adds tags to a group.
func (e *TagGroupsEditor) AddTags(group string, tags ...string) *TagGroupsEditor {
	return e.add(group, pktaggroups.AddTagsMutation(group, tags...))
}

// RemoveTags removes tags from a group.
func (e *TagGroupsEditor) RemoveTags(group string, tags ...string) *TagGroupsEditor {
	return e.add(group, pktaggroups.RemoveTagsMutation(group, tags...))
}

// SetTags replaces the tags of a group. With no tags, the group is cleared.
func (e *TagGroupsEditor) SetTags(group string, tags ...string) *TagGroupsEditor {
	return e.add(group, pktaggroups.SetTagsMutation(group, tags...))
}

func (e *TagGroupsEditor) add(group string, m pktaggroups.Mutation) *TagGroupsEditor {
	if strings.TrimSpace(group) == "" {
		e.client.loggers.Warn("Ignoring tag group edit with an empty group name")
		return e
	}
	if !m.IsEmpty() {
		e.mutations = append(e.mutations, m)
	}
	return e
}

// Apply queues the edits for upload. The queued edits are collapsed into one mutation, and are
// immediately visible to audience checks. Use Client.UploadTagGroups to send them.
func (e *TagGroupsEditor) Apply() {
	if len(e.mutations) == 0 {
		return
	}
	history := e.client.tagHistory
	for _, m := range e.mutations {
		history.AddPendingMutation(m, e.tagType)
	}
	history.CollapsePendingMutations(e.tagType)
	e.mutations = nil
}

// UploadTagGroups sends every pending tag-group mutation whose channel ID or named user ID is
// known. It stops at the first recoverable failure, leaving that mutation and the ones after it
// queued for the next call. Mutations the server rejects permanently are dropped.
//
// An offline client never uploads.
func (c *Client) UploadTagGroups(ctx context.Context) error {
	if c.offline {
		return nil
	}
	return wrapTagError(c.registrar.Upload(ctx))
}

// PendingTagGroupMutation returns the queued edits of one type collapsed into a single mutation,
// or false if nothing is queued.
func (c *Client) PendingTagGroupMutation(t pktaggroups.Type) (pktaggroups.Mutation, bool) {
	c.tagHistory.CollapsePendingMutations(t)
	return c.tagHistory.PeekPendingMutation(t)
}
