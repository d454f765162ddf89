package flow

import (
	"github.com/Proton-105/astro-bot/internal/message"
	"github.com/Proton-105/astro-bot/internal/validation"
)

// Guided flow ids, matching the catalog's flow targets.
const (
	FlowCompatibility  = "compatibility"
	FlowNameNumerology = "name_numerology"
	FlowDeleteData     = "delete_data"
)

const partnerDateLayout = "2006-01-02"

// step collects one value of a guided flow.
type step struct {
	key    string
	prompt func(t *turn, data map[string]string) message.Payload
	parse  func(t *turn, text string) (string, *validation.ValidationError)
}

type guidedFlow struct {
	steps  []step
	finish func(t *turn, data map[string]string) error
}

func defaultFlows() map[string]*guidedFlow {
	return map[string]*guidedFlow{
		FlowCompatibility: {
			steps: []step{
				{key: "partner_name", prompt: textPrompt("flow.compatibility.partner_name"), parse: parseName},
				{key: "partner_date", prompt: textPrompt("flow.compatibility.partner_date"), parse: parseDate},
				{key: "partner_time", prompt: skippablePrompt("flow.compatibility.partner_time"), parse: parseTime},
			},
			finish: func(t *turn, data map[string]string) error {
				return t.content(FlowCompatibility, FlowCompatibility, data, t.sess.NavStack)
			},
		},
		FlowNameNumerology: {
			steps: []step{
				{key: "name", prompt: textPrompt("flow.name_numerology.name"), parse: parseName},
			},
			finish: func(t *turn, data map[string]string) error {
				return t.content(FlowNameNumerology, FlowNameNumerology, data, t.sess.NavStack)
			},
		},
		FlowDeleteData: {
			steps: []step{
				{key: "confirm", prompt: confirmPrompt("flow.delete_data.confirm"), parse: parseConfirm},
			},
			finish: finishDeleteData,
		},
	}
}

func (t *turn) beginFlow(id string) error {
	def, ok := t.e.flows[id]
	if !ok || len(def.steps) == 0 {
		return t.unrecognized("flow " + id)
	}
	if err := t.sess.BeginFlow(id); err != nil {
		return internal(err)
	}
	t.resp.Add(def.steps[0].prompt(t, t.sess.Flow.Data))
	return nil
}

// guided handles AwaitingMultiStepInput. Commands and menu selections leave the
// flow; free text feeds the current step.
func (t *turn) guided(in message.Intent) error {
	f := t.sess.Flow
	def, ok := t.e.flows[f.ID]
	if !ok || f.Step >= len(def.steps) {
		if err := t.sess.EndFlow(); err != nil {
			return internal(err)
		}
		return t.unrecognized("flow " + f.ID)
	}

	switch in.Kind {
	case message.IntentCommand:
		return t.flowCommand(def, in)
	case message.IntentMenuSelection:
		if err := t.sess.EndFlow(); err != nil {
			return internal(err)
		}
		return t.selectNode(in.NodeID)
	}

	current := def.steps[f.Step]
	value, verr := current.parse(t, in.Text)
	if verr != nil {
		return t.invalid(verr)
	}
	if err := t.sess.AdvanceFlow(current.key, value); err != nil {
		return internal(err)
	}

	if next := t.sess.Flow.Step; next < len(def.steps) {
		t.resp.Add(def.steps[next].prompt(t, t.sess.Flow.Data))
		return nil
	}

	data := t.sess.Flow.Data
	if err := t.sess.EndFlow(); err != nil {
		return internal(err)
	}
	return def.finish(t, data)
}

func (t *turn) flowCommand(def *guidedFlow, in message.Intent) error {
	switch in.Name {
	case message.CmdHelp:
		t.say("flow.help")
		t.resp.Add(def.steps[t.sess.Flow.Step].prompt(t, t.sess.Flow.Data))
		return nil
	case message.CmdCancel, message.CmdBack:
		if err := t.sess.EndFlow(); err != nil {
			return internal(err)
		}
		t.say("flow.cancelled")
		return t.menu()
	}

	if err := t.sess.EndFlow(); err != nil {
		return internal(err)
	}
	return t.command(in.Name, in.Arg)
}

func finishDeleteData(t *turn, data map[string]string) error {
	if data["confirm"] != "yes" {
		t.say("flow.delete_data.kept")
		return t.menu()
	}
	if err := t.e.users.Delete(t.ctx, t.profile.Phone); err != nil {
		return internal(err)
	}
	t.deleted = true
	t.say("flow.delete_data.done")
	return nil
}

func textPrompt(key string) func(*turn, map[string]string) message.Payload {
	return func(t *turn, data map[string]string) message.Payload {
		return message.Payload{
			Type: message.PayloadText,
			Body: t.tr.Tf(key, "name", data["partner_name"]),
		}
	}
}

func skippablePrompt(key string) func(*turn, map[string]string) message.Payload {
	return func(t *turn, data map[string]string) message.Payload {
		return message.Payload{
			Type:    message.PayloadButton,
			Body:    t.tr.Tf(key, "name", data["partner_name"]),
			Buttons: []message.Button{{ID: message.TextID("skip"), Title: t.tr.T("button.skip")}},
		}
	}
}

func confirmPrompt(key string) func(*turn, map[string]string) message.Payload {
	return func(t *turn, _ map[string]string) message.Payload {
		return message.Payload{Type: message.PayloadButton, Body: t.tr.T(key), Buttons: t.yesNo()}
	}
}

func parseName(t *turn, text string) (string, *validation.ValidationError) {
	return t.e.validators.Name.Validate(text)
}

func parseDate(t *turn, text string) (string, *validation.ValidationError) {
	d, verr := t.e.validators.Date.Validate(text)
	if verr != nil {
		return "", verr
	}
	return d.Format(partnerDateLayout), nil
}

func parseTime(t *turn, text string) (string, *validation.ValidationError) {
	res, verr := t.e.validators.Time.Validate(text)
	if verr != nil {
		return "", verr
	}
	if res.Skipped {
		return "", nil
	}
	return res.Time.String(), nil
}

func parseConfirm(t *turn, text string) (string, *validation.ValidationError) {
	yes, verr := t.e.validators.Confirm.Validate(text)
	if verr != nil {
		return "", verr
	}
	if yes {
		return "yes", nil
	}
	return "no", nil
}
