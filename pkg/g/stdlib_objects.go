package g

import (
	"github.com/gaia-mud/gaia/pkg/world"
)

func init() {
	register("get_attr", fnGetAttr)
	register("set_attr", fnSetAttr)
	register("has_attr", fnHasAttr)
	register("get_object", fnGetObject)
	register("send", fnSend)
	register("create", fnCreate)
	register("destroy", fnDestroy)
	register("name", fnName)
	register("parents", fnParents)
	register("location", fnLocation)
	register("contents", fnContents)
	register("load", fnLoad)
}

// fnGetAttr is an inheritance-resolved read; an absent attribute reads
// as null.
func fnGetAttr(ctx *Context, call Node, args world.List) (world.Value, error) {
	if err := wantArgs(call, args, 2); err != nil {
		return nil, err
	}
	id, err := argRef(ctx, call, args[0])
	if err != nil {
		return nil, err
	}
	v, ok, err := ctx.World.GetAttribute(id, world.ToString(args[1]))
	if err != nil {
		return nil, wrapWorldErr(err, call)
	}
	if !ok {
		return nil, nil
	}
	return v, nil
}

// fnSetAttr writes on the referenced object itself, never on a parent.
func fnSetAttr(ctx *Context, call Node, args world.List) (world.Value, error) {
	if err := wantArgs(call, args, 3); err != nil {
		return nil, err
	}
	id, err := argRef(ctx, call, args[0])
	if err != nil {
		return nil, err
	}
	if err := ctx.World.SetAttribute(id, world.ToString(args[1]), args[2]); err != nil {
		return nil, wrapWorldErr(err, call)
	}
	return args[2], nil
}

// fnHasAttr distinguishes absent from stored null.
func fnHasAttr(ctx *Context, call Node, args world.List) (world.Value, error) {
	if err := wantArgs(call, args, 2); err != nil {
		return nil, err
	}
	id, err := argRef(ctx, call, args[0])
	if err != nil {
		return nil, err
	}
	_, ok, err := ctx.World.GetAttribute(id, world.ToString(args[1]))
	if err != nil {
		return nil, wrapWorldErr(err, call)
	}
	return ok, nil
}

func fnGetObject(ctx *Context, call Node, args world.List) (world.Value, error) {
	if err := wantArgs(call, args, 1); err != nil {
		return nil, err
	}
	id, err := argRef(ctx, call, args[0])
	if err != nil {
		return nil, err
	}
	if _, err := ctx.World.GetObject(id); err != nil {
		return nil, wrapWorldErr(err, call)
	}
	return world.Ref(id), nil
}

func fnSend(ctx *Context, call Node, args world.List) (world.Value, error) {
	if err := wantArgs(call, args, 2); err != nil {
		return nil, err
	}
	id, err := argRef(ctx, call, args[0])
	if err != nil {
		return nil, err
	}
	if err := ctx.World.Send(id, args[1], ctx.This); err != nil {
		return nil, wrapWorldErr(err, call)
	}
	return nil, nil
}

// fnCreate is [create name parents?]; parents defaults to the root
// object.
func fnCreate(ctx *Context, call Node, args world.List) (world.Value, error) {
	if len(args) != 1 && len(args) != 2 {
		return nil, failf(FailParse, call, "create wants [create name parents?]")
	}
	parents := []string{world.RootID}
	if len(args) == 2 {
		elems := coerceList(args[1])
		parents = make([]string, 0, len(elems))
		for _, el := range elems {
			id, err := argRef(ctx, call, el)
			if err != nil {
				return nil, err
			}
			parents = append(parents, id)
		}
	}
	obj, err := ctx.World.CreateObject(world.ToString(args[0]), parents)
	if err != nil {
		return nil, wrapWorldErr(err, call)
	}
	return world.Ref(obj.ID), nil
}

func fnDestroy(ctx *Context, call Node, args world.List) (world.Value, error) {
	if err := wantArgs(call, args, 1); err != nil {
		return nil, err
	}
	id, err := argRef(ctx, call, args[0])
	if err != nil {
		return nil, err
	}
	if err := ctx.World.DestroyObject(id); err != nil {
		return nil, wrapWorldErr(err, call)
	}
	return nil, nil
}

func fnName(ctx *Context, call Node, args world.List) (world.Value, error) {
	obj, err := objectArg(ctx, call, args)
	if err != nil {
		return nil, err
	}
	return obj.Name, nil
}

func fnParents(ctx *Context, call Node, args world.List) (world.Value, error) {
	obj, err := objectArg(ctx, call, args)
	if err != nil {
		return nil, err
	}
	out := make(world.List, len(obj.ParentIDs))
	for i, p := range obj.ParentIDs {
		out[i] = world.Ref(p)
	}
	return out, nil
}

func fnLocation(ctx *Context, call Node, args world.List) (world.Value, error) {
	obj, err := objectArg(ctx, call, args)
	if err != nil {
		return nil, err
	}
	if obj.LocationID == "" {
		return nil, nil
	}
	return world.Ref(obj.LocationID), nil
}

func fnContents(ctx *Context, call Node, args world.List) (world.Value, error) {
	obj, err := objectArg(ctx, call, args)
	if err != nil {
		return nil, err
	}
	out := make(world.List, len(obj.ContentIDs))
	for i, c := range obj.ContentIDs {
		out[i] = world.Ref(c)
	}
	return out, nil
}

func objectArg(ctx *Context, call Node, args world.List) (*world.Object, error) {
	if err := wantArgs(call, args, 1); err != nil {
		return nil, err
	}
	id, err := argRef(ctx, call, args[0])
	if err != nil {
		return nil, err
	}
	obj, err := ctx.World.GetObject(id)
	if err != nil {
		return nil, wrapWorldErr(err, call)
	}
	return obj, nil
}

// fnLoad is [load path ref attr?]: reads named G source and stores it
// on the referenced object, replacing prior content. Administrator
// only; assigning does not re-run anything already executing.
func fnLoad(ctx *Context, call Node, args world.List) (world.Value, error) {
	if len(args) != 2 && len(args) != 3 {
		return nil, failf(FailParse, call, "load wants [load path ref attr?]")
	}
	if !ctx.World.HasRole(ctx.Actor, "admin") {
		return nil, failf(FailPermission, call, "load requires the admin role")
	}
	src, err := ctx.World.LoadSource(world.ToString(args[0]))
	if err != nil {
		return nil, wrapWorldErr(err, call)
	}
	id, err := argRef(ctx, call, args[1])
	if err != nil {
		return nil, err
	}
	attr := "run"
	if len(args) == 3 {
		attr = world.ToString(args[2])
	}
	if _, err := ParseProgram(src); err != nil {
		return nil, err
	}
	if err := ctx.World.SetAttribute(id, attr, src); err != nil {
		return nil, wrapWorldErr(err, call)
	}
	return nil, nil
}
