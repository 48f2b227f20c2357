package scenario

import (
	"strings"

	"github.com/d5/tengo/v2"

	"github.com/milk9111/anchortap/anchor"
	"github.com/milk9111/anchortap/common"
)

// buildEngine exposes the harness to scripts as an immutable map of
// functions. Gesture sources are the integers 0 (left) and 1 (right).
func buildEngine(r *Runner) *tengo.ImmutableMap {
	values := map[string]tengo.Object{}

	values["press"] = userFunc("press", func(args ...tengo.Object) (tengo.Object, error) {
		src, pos, ok := gestureArgs(args)
		if !ok {
			return tengo.FalseValue, nil
		}
		r.input.Press(src, pos)
		return tengo.TrueValue, nil
	})

	values["release"] = userFunc("release", func(args ...tengo.Object) (tengo.Object, error) {
		src, ok := sourceArg(args)
		if !ok {
			return tengo.FalseValue, nil
		}
		r.input.Release(src)
		return tengo.TrueValue, nil
	})

	values["tap"] = userFunc("tap", func(args ...tengo.Object) (tengo.Object, error) {
		src, pos, ok := gestureArgs(args)
		if !ok {
			return tengo.FalseValue, nil
		}
		r.input.Tap(src, pos)
		return tengo.TrueValue, nil
	})

	values["set_position"] = userFunc("set_position", func(args ...tengo.Object) (tengo.Object, error) {
		src, pos, ok := gestureArgs(args)
		if !ok {
			return tengo.FalseValue, nil
		}
		r.input.SetPosition(src, pos)
		return tengo.TrueValue, nil
	})

	values["lose_signal"] = userFunc("lose_signal", func(args ...tengo.Object) (tengo.Object, error) {
		src, ok := sourceArg(args)
		if !ok {
			return tengo.FalseValue, nil
		}
		r.input.LoseSignal(src)
		return tengo.TrueValue, nil
	})

	values["set_viewer"] = userFunc("set_viewer", func(args ...tengo.Object) (tengo.Object, error) {
		pos, ok := vecArgs(args)
		if !ok {
			return tengo.FalseValue, nil
		}
		r.input.SetViewer(pos)
		return tengo.TrueValue, nil
	})

	values["clear_viewer"] = userFunc("clear_viewer", func(...tengo.Object) (tengo.Object, error) {
		r.input.ClearViewer()
		return tengo.TrueValue, nil
	})

	values["anchors"] = userFunc("anchors", func(...tengo.Object) (tengo.Object, error) {
		recs := r.ctrl.Anchors()
		out := make([]tengo.Object, 0, len(recs))
		for _, rec := range recs {
			out = append(out, &tengo.Map{Value: map[string]tengo.Object{
				"handle":    &tengo.String{Value: rec.Handle.Short()},
				"x":         &tengo.Float{Value: rec.Position.X},
				"y":         &tengo.Float{Value: rec.Position.Y},
				"z":         &tengo.Float{Value: rec.Position.Z},
				"tracking":  &tengo.String{Value: rec.Tracking.String()},
				"persisted": boolObj(rec.Persisted),
				"name":      &tengo.String{Value: rec.PersistedName},
			}})
		}
		return &tengo.Array{Value: out}, nil
	})

	values["anchor_count"] = userFunc("anchor_count", func(...tengo.Object) (tengo.Object, error) {
		return &tengo.Int{Value: int64(len(r.ctrl.Anchors()))}, nil
	})

	values["persisted_names"] = userFunc("persisted_names", func(...tengo.Object) (tengo.Object, error) {
		names := r.ctrl.PersistedNames()
		out := make([]tengo.Object, 0, len(names))
		for _, n := range names {
			out = append(out, &tengo.String{Value: n})
		}
		return &tengo.Array{Value: out}, nil
	})

	values["pending_loads"] = userFunc("pending_loads", func(...tengo.Object) (tengo.Object, error) {
		return &tengo.Int{Value: int64(r.ctrl.PendingLoads())}, nil
	})

	values["phase"] = userFunc("phase", func(...tengo.Object) (tengo.Object, error) {
		return &tengo.String{Value: r.ctrl.Phase().String()}, nil
	})

	values["frame"] = userFunc("frame", func(...tengo.Object) (tengo.Object, error) {
		return &tengo.Int{Value: int64(r.world.Frame())}, nil
	})

	values["fail_next_create"] = userFunc("fail_next_create", func(args ...tengo.Object) (tengo.Object, error) {
		r.world.FailNextCreate(countArg(args))
		return tengo.TrueValue, nil
	})

	values["fail_next_persist"] = userFunc("fail_next_persist", func(args ...tengo.Object) (tengo.Object, error) {
		r.world.FailNextPersist(countArg(args))
		return tengo.TrueValue, nil
	})

	values["drop_anchor"] = userFunc("drop_anchor", func(args ...tengo.Object) (tengo.Object, error) {
		idx, ok := intArg(args, 0)
		if !ok {
			return tengo.FalseValue, nil
		}
		recs := r.ctrl.Anchors()
		if idx < 0 || idx >= len(recs) {
			return tengo.FalseValue, nil
		}
		return boolObj(r.world.DropAnchor(recs[idx].Handle)), nil
	})

	values["fail_store_open"] = userFunc("fail_store_open", func(...tengo.Object) (tengo.Object, error) {
		r.failNextOpen = true
		return tengo.TrueValue, nil
	})

	values["forget_all"] = userFunc("forget_all", func(...tengo.Object) (tengo.Object, error) {
		r.ctrl.ForgetAll()
		return tengo.TrueValue, nil
	})

	values["restart"] = userFunc("restart", func(...tengo.Object) (tengo.Object, error) {
		if err := r.restart(); err != nil {
			return nil, err
		}
		return tengo.TrueValue, nil
	})

	values["expect"] = userFunc("expect", func(args ...tengo.Object) (tengo.Object, error) {
		if len(args) == 0 {
			r.expect(false, "expect called without a condition")
			return tengo.FalseValue, nil
		}
		msg := ""
		if len(args) > 1 {
			msg = objectAsString(args[1])
		}
		ok := !args[0].IsFalsy()
		r.expect(ok, msg)
		return boolObj(ok), nil
	})

	values["log"] = userFunc("log", func(args ...tengo.Object) (tengo.Object, error) {
		if len(args) > 0 {
			r.log.Info(objectAsString(args[0]))
		}
		return tengo.UndefinedValue, nil
	})

	return &tengo.ImmutableMap{Value: values}
}

func userFunc(name string, fn tengo.CallableFunc) *tengo.UserFunction {
	return &tengo.UserFunction{Name: name, Value: fn}
}

func boolObj(b bool) tengo.Object {
	if b {
		return tengo.TrueValue
	}
	return tengo.FalseValue
}

func gestureArgs(args []tengo.Object) (anchor.Source, common.Vec3, bool) {
	src, ok := sourceArg(args)
	if !ok || len(args) < 4 {
		return 0, common.Vec3{}, false
	}
	pos, ok := vecArgs(args[1:4])
	return src, pos, ok
}

func sourceArg(args []tengo.Object) (anchor.Source, bool) {
	n, ok := intArg(args, 0)
	if !ok {
		return 0, false
	}
	switch n {
	case 0:
		return anchor.LeftHand, true
	case 1:
		return anchor.RightHand, true
	default:
		return 0, false
	}
}

func vecArgs(args []tengo.Object) (common.Vec3, bool) {
	if len(args) < 3 {
		return common.Vec3{}, false
	}
	x, okX := floatArg(args, 0)
	y, okY := floatArg(args, 1)
	z, okZ := floatArg(args, 2)
	if !okX || !okY || !okZ {
		return common.Vec3{}, false
	}
	return common.Vec3{X: x, Y: y, Z: z}, true
}

func countArg(args []tengo.Object) int {
	if n, ok := intArg(args, 0); ok && n > 0 {
		return n
	}
	return 1
}

func intArg(args []tengo.Object, i int) (int, bool) {
	if i >= len(args) {
		return 0, false
	}
	switch v := args[i].(type) {
	case *tengo.Int:
		return int(v.Value), true
	case *tengo.Float:
		return int(v.Value), true
	default:
		return 0, false
	}
}

func floatArg(args []tengo.Object, i int) (float64, bool) {
	if i >= len(args) {
		return 0, false
	}
	switch v := args[i].(type) {
	case *tengo.Float:
		return v.Value, true
	case *tengo.Int:
		return float64(v.Value), true
	default:
		return 0, false
	}
}

func objectAsString(obj tengo.Object) string {
	if obj == nil {
		return ""
	}
	if s, ok := obj.(*tengo.String); ok {
		return s.Value
	}
	return strings.Trim(obj.String(), "\"")
}
