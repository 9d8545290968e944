package httpx

// Optional is a value that may or may not have been provided by the caller.
// This allows telling the difference between an omitted argument and a zero value.
type Optional[T any] struct {
	Value T
	Set   bool
}

// Some creates an [Optional] that has been provided.
func Some[T any](val T) Optional[T] {
	return Optional[T]{Value: val, Set: true}
}

// Get returns the value and whether it was provided.
func (o Optional[T]) Get() (T, bool) {
	return o.Value, o.Set
}

// Or returns the value if it was provided, otherwise defaultVal.
func (o Optional[T]) Or(defaultVal T) T {
	if o.Set {
		return o.Value
	}
	return defaultVal
}

// OpenArgs are the optional arguments to [Request.Open].
// An empty OpenArgs opens an asynchronous request with no credentials.
type OpenArgs struct {
	Async    Optional[bool]
	User     Optional[string]
	Password Optional[string]
}

type (
	OpenFunc   = func(r *Request, method, url string, args OpenArgs) error
	HeaderFunc = func(r *Request, name, value string) error
	SendFunc   = func(r *Request, body any) error
)

// Prototype is the table of mutating operations shared by every [Request] created from the same [Client].
// Replacing an operation changes the behavior of all of those requests, including ones that already exist.
//
// A Prototype should only be modified before requests are issued, since reads are not synchronized.
type Prototype struct {
	Open             OpenFunc
	SetRequestHeader HeaderFunc
	Send             SendFunc
}

// NewPrototype creates a [Prototype] with the base implementations of every operation.
func NewPrototype() *Prototype {
	return &Prototype{
		Open:             open,
		SetRequestHeader: setRequestHeader,
		Send:             send,
	}
}

func (p *Prototype) fill() *Prototype {
	if p.Open == nil {
		p.Open = open
	}
	if p.SetRequestHeader == nil {
		p.SetRequestHeader = setRequestHeader
	}
	if p.Send == nil {
		p.Send = send
	}
	return p
}
