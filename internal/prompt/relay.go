package prompt

// Kind names the question a relayed Request carries.
type Kind string

const (
	KindRollback     Kind = "rollback"
	KindForceOrSmart Kind = "force-or-smart"
	KindConflicts    Kind = "conflicts"
	KindBranch       Kind = "branch"
)

// Request is one pending question forwarded by a Relay. The fields matching
// Kind are set; Reply must be called exactly once.
type Request struct {
	Kind       Kind
	Title      string
	Message    string
	Operation  string
	Paths      []string
	Root       string
	Candidates []string

	reply chan Answer
}

// Answer carries the response to a Request. Only the field matching the
// request's Kind is read.
type Answer struct {
	Yes    bool
	Choice Choice
	Branch string
}

// Reply answers the request and unblocks the asking goroutine.
func (r Request) Reply(a Answer) {
	r.reply <- a
}

// Relay is a Decider that marshals every question onto an owning goroutine.
// Engine workers block in the Decider methods while the owner receives the
// question from Requests and replies, keeping interactive prompts on the
// goroutine that holds the terminal.
type Relay struct {
	c chan Request
}

var _ Decider = (*Relay)(nil)

// NewRelay returns an unstarted relay. The owner must drain Requests, either
// directly or through Serve, or every decision blocks forever.
func NewRelay() *Relay {
	return &Relay{c: make(chan Request)}
}

// Requests is the channel the owning goroutine receives questions on.
func (r *Relay) Requests() <-chan Request {
	return r.c
}

// Close ends the stream of questions. No Decider method may be called after
// Close.
func (r *Relay) Close() {
	close(r.c)
}

// Serve answers every request with d until Close.
func (r *Relay) Serve(d Decider) {
	for req := range r.c {
		switch req.Kind {
		case KindRollback:
			req.Reply(Answer{Yes: d.ConfirmRollback(req.Title, req.Message)})
		case KindForceOrSmart:
			req.Reply(Answer{Choice: d.ChooseForceOrSmart(req.Operation, req.Paths)})
		case KindConflicts:
			req.Reply(Answer{Yes: d.ResolveConflicts(req.Root)})
		case KindBranch:
			req.Reply(Answer{Branch: d.ChooseBranch(req.Candidates)})
		}
	}
}

func (r *Relay) ConfirmRollback(title, message string) bool {
	return r.send(Request{Kind: KindRollback, Title: title, Message: message}).Yes
}

func (r *Relay) ChooseForceOrSmart(operation string, paths []string) Choice {
	return r.send(Request{Kind: KindForceOrSmart, Operation: operation, Paths: paths}).Choice
}

func (r *Relay) ResolveConflicts(root string) bool {
	return r.send(Request{Kind: KindConflicts, Root: root}).Yes
}

func (r *Relay) ChooseBranch(candidates []string) string {
	return r.send(Request{Kind: KindBranch, Candidates: candidates}).Branch
}

func (r *Relay) send(req Request) Answer {
	req.reply = make(chan Answer, 1)
	r.c <- req
	return <-req.reply
}
