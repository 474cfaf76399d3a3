package aisvc

import (
	"context"
	"strings"

	"github.com/trezcool/campus/core/chat"
)

const cannedModel = "canned"

type cannedReply struct {
	keywords []string
	reply    string
}

var cannedReplies = []cannedReply{
	{
		keywords: []string{"exam", "test", "revise", "revision"},
		reply: "Start revising early: split the material into small topics, test yourself with past papers " +
			"and review the topics you miss the most. Short daily sessions beat a single all-nighter.",
	},
	{
		keywords: []string{"enroll", "enrol", "course", "register"},
		reply: "You can browse the course catalog and enroll from the Courses page. " +
			"Enrolled courses show up in your dashboard & timetable right away.",
	},
	{
		keywords: []string{"group", "study buddy", "partner"},
		reply: "Study groups are a great way to stay on track. Create one from the Study Groups page " +
			"or join an existing group for one of your courses.",
	},
	{
		keywords: []string{"schedule", "timetable", "class", "lecture"},
		reply: "Your timetable lists your classes for the week. Add your own study sessions to it " +
			"so that you can see all your commitments in one place.",
	},
	{
		keywords: []string{"focus", "procrastinat", "motivat"},
		reply: "Try the Pomodoro technique: 25 minutes of focused work followed by a 5 minute break. " +
			"Put your phone away and keep a list of the tasks you want to finish.",
	},
}

const cannedFallback = "I'm the Campus study assistant. Ask me about your courses, study groups, " +
	"timetable or study techniques and I'll do my best to help!"

// CannedCompleter answers from a fixed set of replies picked by keyword. Used in development & tests.
type CannedCompleter struct{}

var _ chat.Completer = CannedCompleter{}

func NewCannedCompleter() CannedCompleter {
	return CannedCompleter{}
}

func (CannedCompleter) Complete(ctx context.Context, turns []chat.Turn) (chat.Completion, error) {
	if err := ctx.Err(); err != nil {
		return chat.Completion{}, err
	}

	var last string
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == chat.RoleUser {
			last = strings.ToLower(turns[i].Content)
			break
		}
	}
	for _, cr := range cannedReplies {
		for _, kw := range cr.keywords {
			if strings.Contains(last, kw) {
				return chat.Completion{Content: cr.reply, Model: cannedModel}, nil
			}
		}
	}
	return chat.Completion{Content: cannedFallback, Model: cannedModel}, nil
}
