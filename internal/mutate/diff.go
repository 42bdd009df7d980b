package mutate

import (
	"strconv"

	"github.com/dshills/arbor/internal/path"
	"github.com/dshills/arbor/internal/tree"
	"github.com/dshills/arbor/internal/value"
)

// diff reconciles parent[key] with nv. nv must be detached; its nodes are
// adopted into the tree.
func (e *Engine) diff(parent value.Container, key string, p path.Path, nv value.Value, opts Options) {
	old, ok := parent.Get(key)
	if !ok {
		return
	}

	_, oldIsContainer := old.(value.Container)
	newContainer, newIsContainer := nv.(value.Container)

	switch {
	case oldIsContainer && newIsContainer && old.Kind() == nv.Kind():
		e.diffContainers(old, nv, p, opts)

	case oldIsContainer || newIsContainer:
		// kinds differ: replace wholesale
		snapshot := value.ToAny(old)
		if oldIsContainer {
			e.deleteChildren(old, p, opts.Message)
		}
		parent.Replace(key, nv)
		if newIsContainer {
			e.createChildren(newContainer, p, opts.Message)
		}
		e.emitChange(p, opts.Message, nv, snapshot)

	default:
		if value.Equal(old, nv) {
			if opts.ForceUpdate {
				e.emitChange(p, opts.Message, nv, value.ToAny(old))
			}
			return
		}
		e.emitChange(p, opts.Message, nv, value.ToAny(old))
		parent.Replace(key, nv)
	}
}

// diffContainers reconciles two containers of the same kind. Removed
// children are deleted, added ones adopted, then "updated" is emitted if
// the key set changed, and finally every common child is diffed.
func (e *Engine) diffContainers(old, nv value.Value, p path.Path, opts Options) {
	snapshot := value.ToAny(old)
	changed := false

	var common []string

	switch o := old.(type) {
	case *value.Mapping:
		n := nv.(*value.Mapping)
		for _, k := range o.Keys() {
			if n.Has(k) {
				continue
			}
			e.deleteNode(o, k, p.ChildKey(k), opts.Message)
			changed = true
		}
		for _, k := range n.Keys() {
			child, _ := n.Get(k)
			if o.Has(k) {
				common = append(common, k)
				continue
			}
			o.Set(k, child)
			e.emitCreated(tree.At(o, k, child, p.ChildKey(k)), opts.Message)
			changed = true
		}

	case *value.Sequence:
		n := nv.(*value.Sequence)
		ol, nl := o.Len(), n.Len()
		for i := ol - 1; i >= nl; i-- {
			k := strconv.Itoa(i)
			e.deleteNode(o, k, p.ChildKey(k), opts.Message)
			changed = true
		}
		for i := ol; i < nl; i++ {
			child, _ := n.At(i)
			k := strconv.Itoa(o.Append(child))
			e.emitCreated(tree.At(o, k, child, p.ChildKey(k)), opts.Message)
			changed = true
		}
		for i := 0; i < ol && i < nl; i++ {
			common = append(common, strconv.Itoa(i))
		}
	}

	if changed || opts.ForceUpdate {
		e.emitChange(p, opts.Message, nv, snapshot)
	}

	next := nv.(value.Container)
	oc := old.(value.Container)
	for _, k := range common {
		child, _ := next.Get(k)
		e.diff(oc, k, p.ChildKey(k), child, opts)
	}
}
