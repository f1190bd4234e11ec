// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package llm

import (
	"context"
	"strings"

	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/petar-djukic/go-c2rust/pkg/types"
)

// EventStream abstracts the Bedrock ConverseStream event stream for testing.
type EventStream interface {
	Events() <-chan brtypes.ConverseStreamOutput
	Close() error
	Err() error
}

// streamReply is what one ConverseStream call produced.
type streamReply struct {
	Text    string
	Usage   types.TokenUsage
	Retries int // throttled attempts before this one
}

// consumeStream drains a ConverseStream into a streamReply, forwarding each
// text delta on tokenCh. tokenCh is closed on return. Cancelling ctx closes
// the stream and returns the text received so far.
func consumeStream(ctx context.Context, stream EventStream, tokenCh chan<- string) *streamReply {
	defer close(tokenCh)

	var (
		text  strings.Builder
		reply streamReply
	)
	finish := func(closeStream bool) *streamReply {
		if closeStream {
			stream.Close()
		}
		reply.Text = text.String()
		return &reply
	}

	events := stream.Events()
	for {
		var event brtypes.ConverseStreamOutput
		select {
		case <-ctx.Done():
			return finish(true)
		case ev, ok := <-events:
			if !ok {
				return finish(false)
			}
			event = ev
		}

		switch v := event.(type) {
		case *brtypes.ConverseStreamOutputMemberContentBlockDelta:
			delta, ok := v.Value.Delta.(*brtypes.ContentBlockDeltaMemberText)
			if !ok {
				continue
			}
			text.WriteString(delta.Value)
			select {
			case tokenCh <- delta.Value:
			case <-ctx.Done():
				return finish(true)
			}
		case *brtypes.ConverseStreamOutputMemberMetadata:
			if u := v.Value.Usage; u != nil {
				reply.Usage = types.TokenUsage{
					InputTokens:  int(aws32(u.InputTokens)),
					OutputTokens: int(aws32(u.OutputTokens)),
				}
			}
		}
	}
}

func aws32(p *int32) int32 {
	if p == nil {
		return 0
	}
	return *p
}
