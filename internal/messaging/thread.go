package messaging

import (
	"context"
	"fmt"

	"github.com/npezzotti/go-messaging/internal/database"
)

// ThreadNode is a message with its replies nested beneath it.
type ThreadNode struct {
	Message database.Message `json:"message"`
	Depth   int              `json:"depth"`
	Replies []*ThreadNode    `json:"replies"`
}

// Size returns the number of messages in the subtree rooted at n.
func (n *ThreadNode) Size() int {
	size := 1
	for _, reply := range n.Replies {
		size += reply.Size()
	}
	return size
}

// GetThread loads a message and every reply beneath it in a single query and
// nests the replies by parent. Siblings are ordered by id.
func (e *Engine) GetThread(ctx context.Context, rootId int) (*ThreadNode, error) {
	rows, err := e.repo.GetThreadMessages(ctx, rootId, e.maxDepth+1)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &NotFoundError{Entity: "message", Id: rootId}
	}

	roots, err := linkThreadRows(rootId, rows, e.maxDepth)
	if err != nil {
		e.log.Printf("thread %d: %v", rootId, err)
		return nil, err
	}
	if len(roots) != 1 || roots[0].Message.Id != rootId {
		return nil, &CorruptThreadError{RootId: rootId, Reason: "root message not at depth 0"}
	}

	e.stats.Incr(MetricThreadsAssembled)
	return roots[0], nil
}

// linkThreadRows turns the flat rows of a recursive thread walk into trees,
// returning the depth 0 nodes. Rows must be ordered by message id. A message
// id seen twice means the parent chain loops back on itself, and a row
// deeper than maxDepth means the walk was cut short; both fail the read.
func linkThreadRows(rootId int, rows []database.ThreadRow, maxDepth int) ([]*ThreadNode, error) {
	nodes := make(map[int]*ThreadNode, len(rows))
	ordered := make([]*ThreadNode, 0, len(rows))

	for _, row := range rows {
		if _, seen := nodes[row.Id]; seen {
			return nil, &CorruptThreadError{
				RootId: rootId,
				Reason: fmt.Sprintf("message %d is its own ancestor", row.Id),
			}
		}
		if row.Depth > maxDepth {
			return nil, &CorruptThreadError{
				RootId: rootId,
				Reason: fmt.Sprintf("message %d is nested deeper than %d levels", row.Id, maxDepth),
			}
		}

		node := &ThreadNode{Message: row.Message, Depth: row.Depth, Replies: make([]*ThreadNode, 0)}
		nodes[row.Id] = node
		ordered = append(ordered, node)
	}

	roots := make([]*ThreadNode, 0, 1)
	for _, node := range ordered {
		if node.Depth == 0 {
			roots = append(roots, node)
			continue
		}

		if node.Message.ParentId == nil {
			return nil, &CorruptThreadError{
				RootId: rootId,
				Reason: fmt.Sprintf("reply %d has no parent", node.Message.Id),
			}
		}
		parent, ok := nodes[*node.Message.ParentId]
		if !ok || parent.Depth != node.Depth-1 {
			return nil, &CorruptThreadError{
				RootId: rootId,
				Reason: fmt.Sprintf("reply %d is detached from its parent %d", node.Message.Id, *node.Message.ParentId),
			}
		}
		parent.Replies = append(parent.Replies, node)
	}

	return roots, nil
}
