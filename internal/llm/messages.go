// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package llm

import (
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/petar-djukic/go-c2rust/pkg/types"
)

// ConstructMessages converts an oracle conversation to Bedrock messages.
// Consecutive turns from the same role are merged because Converse requires
// the roles to alternate.
func ConstructMessages(msgs []types.Message) []brtypes.Message {
	var out []brtypes.Message
	for _, m := range msgs {
		role := brtypes.ConversationRoleUser
		if m.Role == types.RoleAssistant {
			role = brtypes.ConversationRoleAssistant
		}
		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Content = append(out[n-1].Content, &brtypes.ContentBlockMemberText{Value: m.Content})
			continue
		}
		out = append(out, textMessage(role, m.Content))
	}
	return out
}

func textMessage(role brtypes.ConversationRole, text string) brtypes.Message {
	return brtypes.Message{
		Role: role,
		Content: []brtypes.ContentBlock{
			&brtypes.ContentBlockMemberText{Value: text},
		},
	}
}
