package shape

import (
	"fmt"
	"iter"
	"reflect"
)

// Assign stores value into dst, adapting projected values to the Go type of
// dst: nil becomes the zero value, pointers are allocated or dereferenced,
// numbers are converted between numeric kinds and any enumerable value
// (slice, array, iter.Seq, iter.Seq2 with error) fills slices, arrays and
// map[K]struct{} sets element by element.
func Assign(dst reflect.Value, value any) error {
	if value == nil {
		dst.SetZero()
		return nil
	}
	src := reflect.ValueOf(value)
	dt := dst.Type()
	if src.Type().AssignableTo(dt) {
		dst.Set(src)
		return nil
	}

	switch {
	case src.Kind() == reflect.Pointer:
		if src.IsNil() {
			dst.SetZero()
			return nil
		}
		return Assign(dst, src.Elem().Interface())
	case dt.Kind() == reflect.Pointer:
		p := reflect.New(dt.Elem())
		if err := Assign(p.Elem(), value); err != nil {
			return err
		}
		dst.Set(p)
		return nil
	case isNumeric(src.Kind()) && isNumeric(dt.Kind()):
		dst.Set(src.Convert(dt))
		return nil
	case src.Kind() == dt.Kind() && src.Type().ConvertibleTo(dt):
		dst.Set(src.Convert(dt))
		return nil
	}

	switch dt.Kind() {
	case reflect.Slice:
		out := reflect.MakeSlice(dt, 0, 0)
		err := EachElement(value, func(elem any) error {
			v := reflect.New(dt.Elem()).Elem()
			if err := Assign(v, elem); err != nil {
				return err
			}
			out = reflect.Append(out, v)
			return nil
		})
		if err != nil {
			return err
		}
		dst.Set(out)
		return nil
	case reflect.Array:
		i := 0
		return EachElement(value, func(elem any) error {
			if i >= dt.Len() {
				return fmt.Errorf("more than %d elements for %s", dt.Len(), dt)
			}
			err := Assign(dst.Index(i), elem)
			i++
			return err
		})
	case reflect.Map:
		if dt.Elem() != emptyStructType {
			break
		}
		out := reflect.MakeMap(dt)
		err := EachElement(value, func(elem any) error {
			k := reflect.New(dt.Key()).Elem()
			if err := Assign(k, elem); err != nil {
				return err
			}
			out.SetMapIndex(k, reflect.ValueOf(struct{}{}))
			return nil
		})
		if err != nil {
			return err
		}
		dst.Set(out)
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, dt)
}

// EachElement calls fn for every element of an enumerable value. Supported
// values are slices, arrays, iter.Seq[any] and iter.Seq2[any, error].
func EachElement(value any, fn func(any) error) error {
	switch seq := value.(type) {
	case []any:
		for _, v := range seq {
			if err := fn(v); err != nil {
				return err
			}
		}
		return nil
	case iter.Seq2[any, error]:
		for v, err := range seq {
			if err != nil {
				return err
			}
			if err := fn(v); err != nil {
				return err
			}
		}
		return nil
	case iter.Seq[any]:
		for v := range seq {
			if err := fn(v); err != nil {
				return err
			}
		}
		return nil
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := range rv.Len() {
			if err := fn(rv.Index(i).Interface()); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("%T is not enumerable", value)
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
