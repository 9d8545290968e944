package eventbus

import (
	"errors"
	"fmt"
)

var (
	ErrUnexpectedTypeParam = errors.New("unexpected parameter type")
	ErrNotEnoughParams     = errors.New("not enough parameters")
)

// AssertParam is the most basic way to assert a [Param] type.
// A nil [Param] never passes.
func AssertParam[T any](param Param) (T, bool) {
	if param == nil {
		var mt T
		return mt, false
	}
	val, ok := param.(T)
	return val, ok
}

// ParamAt asserts the type of the [Param] at position pos.
// This is convenient in callbacks, where the shape of the params is known from the event name.
func ParamAt[T any](params []Param, pos int) (T, bool) {
	if pos < 0 || pos >= len(params) {
		var mt T
		return mt, false
	}
	return AssertParam[T](params[pos])
}

// ParamAssertion is a function that asserts constraints of a [Param].
// The pos parameter is informational and usually should not be the subject of an assertion.
type ParamAssertion func(pos int, p Param) error

// And is used to chain assertions into one [ParamAssertion].
// If an assertion returns an error, then execution will stop and the error will be returned.
func (a ParamAssertion) And(other ParamAssertion, more ...ParamAssertion) ParamAssertion {
	return func(pos int, p Param) error {
		if err := a(pos, p); err != nil {
			return err
		}
		if err := other(pos, p); err != nil {
			return err
		}
		for _, next := range more {
			if err := next(pos, p); err != nil {
				return err
			}
		}
		return nil
	}
}

// IsType asserts that a [Param] is of the expected type.
func IsType[T any]() ParamAssertion {
	return func(pos int, p Param) error {
		if _, ok := p.(T); !ok {
			var expected T
			return fmt.Errorf("%w: param %d: expected %T, but got %T", ErrUnexpectedTypeParam, pos, expected, p)
		}
		return nil
	}
}

func notNil() ParamAssertion {
	return func(pos int, p Param) error {
		if p == nil {
			return fmt.Errorf("%w: parameter %d is nil", ErrUnexpectedTypeParam, pos)
		}
		return nil
	}
}

// AssertAndStore will return a [ParamAssertion] that first asserts the [Param] type, and then stores its value in target.
// The target parameter cannot be a nil pointer.
func AssertAndStore[T any](target *T) ParamAssertion {
	if target == nil {
		return func(pos int, _ Param) error {
			return fmt.Errorf("target for param %d is nil pointer", pos)
		}
	}
	return notNil().And(IsType[T](), func(_ int, p Param) error {
		*target = p.(T)
		return nil
	})
}

// ParamSpec uses all given [ParamAssertion] to create a function that can make assertions about all params.
// The assertion at position 0 will be applied to the [Param] at position 0, and so on.
// A nil [ParamAssertion] skips its position, and extra params or assertions are ignored.
// If the number of params is less than minParams, then an error is returned without running any assertion.
func ParamSpec(minParams int, assertions ...ParamAssertion) func(params []Param) error {
	return func(params []Param) error {
		if len(params) < minParams {
			return fmt.Errorf("%w: expected at least %d parameters, got %d", ErrNotEnoughParams, minParams, len(params))
		}
		var errs []error
		for i := 0; i < len(assertions) && i < len(params); i++ {
			if assertions[i] == nil {
				continue
			}
			if err := assertions[i](i, params[i]); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
}
