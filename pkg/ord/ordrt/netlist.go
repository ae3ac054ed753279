package ordrt

// Netlist is the connectivity of one cell's schematic, independent of any
// placement or rendering concerns. It feeds the node-link diagram in
// pkg/render/netlist.
type Netlist struct {
	Cell      string
	Ports     []string
	Nets      []string
	Instances []NetlistInstance
	Edges     []NetlistEdge
}

// NetlistInstance is a component instance reference.
type NetlistInstance struct {
	Name      string
	Component string
}

// NetlistEdge connects one instance pin to a port or net.
type NetlistEdge struct {
	Instance string
	Pin      string
	Net      string
}

// Netlists extracts the connectivity of every cell with a schematic view.
// Deferred statements (loop bodies, late connections) are resolved first,
// so the edges match what Execute would see.
func (r *Runtime) Netlists(source string) ([]Netlist, error) {
	prog, err := parse(source)
	if err != nil {
		return nil, err
	}

	var lists []Netlist
	for _, cell := range prog.Cells {
		if cell.Schematic == nil {
			continue
		}
		if err := checkSchematicNames(cell); err != nil {
			return nil, err
		}
		if err := resolveSchematic(cell); err != nil {
			return nil, err
		}

		nl := Netlist{Cell: cell.Name}
		for _, p := range cell.Schematic.Ports {
			nl.Ports = append(nl.Ports, p.Name)
		}
		for _, n := range cell.Schematic.Nets {
			nl.Nets = append(nl.Nets, n.Name)
		}
		for _, inst := range cell.Schematic.Instances {
			nl.Instances = append(nl.Instances, NetlistInstance{
				Name:      inst.Name,
				Component: inst.Type,
			})
			for _, c := range inst.Conns {
				nl.Edges = append(nl.Edges, NetlistEdge{
					Instance: inst.Name,
					Pin:      c.Pin,
					Net:      c.Net,
				})
			}
		}
		lists = append(lists, nl)
	}
	return lists, nil
}
