package models

import "fmt"

// entityKind discriminates the tagged union shared by Resource and Consumer
// (spec: "consumer represents who is consuming the resource; same variant
// space as resource"). Resource and Consumer are distinct named types over
// the same underlying Entity so call sites stay self-documenting, but the
// constructors and accessors are shared.
type entityKind int

const (
	EntityLocalMachine entityKind = iota
	EntityProcess
	EntityControlGroup
	EntityCpuPackage
	EntityCpuCore
	EntityDram
	EntityGpu
	EntityCustom
)

func (k entityKind) String() string {
	switch k {
	case EntityLocalMachine:
		return "local_machine"
	case EntityProcess:
		return "process"
	case EntityControlGroup:
		return "cgroup"
	case EntityCpuPackage:
		return "cpu_package"
	case EntityCpuCore:
		return "cpu_core"
	case EntityDram:
		return "dram"
	case EntityGpu:
		return "gpu"
	case EntityCustom:
		return "custom"
	default:
		return "unknown"
	}
}

// Entity is the shared representation behind Resource and Consumer.
type Entity struct {
	kind      entityKind
	pid       uint64
	cgroup    string
	pkgID     uint32
	coreID    uint32
	busID     string
	custKind  string
	custID    string
}

func (e Entity) Kind() string { return e.kind.String() }

// Pid returns the process id for EntityProcess entities.
func (e Entity) Pid() (uint64, bool) { return e.pid, e.kind == EntityProcess }

// ControlGroupPath returns the cgroup path for EntityControlGroup entities.
func (e Entity) ControlGroupPath() (string, bool) { return e.cgroup, e.kind == EntityControlGroup }

// PackageID returns the socket id for EntityCpuPackage / EntityDram entities.
func (e Entity) PackageID() (uint32, bool) {
	return e.pkgID, e.kind == EntityCpuPackage || e.kind == EntityDram
}

// CoreID returns the core id for EntityCpuCore entities.
func (e Entity) CoreID() (uint32, bool) { return e.coreID, e.kind == EntityCpuCore }

// BusID returns the PCI bus id for EntityGpu entities.
func (e Entity) BusID() (string, bool) { return e.busID, e.kind == EntityGpu }

// Custom returns the (kind, id) pair for EntityCustom entities.
func (e Entity) Custom() (kind, id string, ok bool) {
	return e.custKind, e.custID, e.kind == EntityCustom
}

func (e Entity) String() string {
	switch e.kind {
	case EntityLocalMachine:
		return "local_machine"
	case EntityProcess:
		return fmt.Sprintf("process[%d]", e.pid)
	case EntityControlGroup:
		return fmt.Sprintf("cgroup[%s]", e.cgroup)
	case EntityCpuPackage:
		return fmt.Sprintf("cpu_package[%d]", e.pkgID)
	case EntityCpuCore:
		return fmt.Sprintf("cpu_core[%d]", e.coreID)
	case EntityDram:
		return fmt.Sprintf("dram[%d]", e.pkgID)
	case EntityGpu:
		return fmt.Sprintf("gpu[%s]", e.busID)
	case EntityCustom:
		return fmt.Sprintf("custom[%s:%s]", e.custKind, e.custID)
	default:
		return "unknown"
	}
}

// Resource is the entity that was measured.
type Resource struct{ Entity }

// Consumer is the entity the measurement is attributed to.
type Consumer struct{ Entity }

func mkEntity(k entityKind) Entity { return Entity{kind: k} }

func entityLocalMachine() Entity         { return mkEntity(EntityLocalMachine) }
func entityProcess(pid uint64) Entity    { e := mkEntity(EntityProcess); e.pid = pid; return e }
func entityControlGroup(path string) Entity {
	e := mkEntity(EntityControlGroup)
	e.cgroup = path
	return e
}
func entityCpuPackage(id uint32) Entity { e := mkEntity(EntityCpuPackage); e.pkgID = id; return e }
func entityCpuCore(id uint32) Entity    { e := mkEntity(EntityCpuCore); e.coreID = id; return e }
func entityDram(pkgID uint32) Entity    { e := mkEntity(EntityDram); e.pkgID = pkgID; return e }
func entityGpu(busID string) Entity     { e := mkEntity(EntityGpu); e.busID = busID; return e }
func entityCustom(kind, id string) Entity {
	e := mkEntity(EntityCustom)
	e.custKind = kind
	e.custID = id
	return e
}

// Resource constructors.
func LocalMachine() Resource            { return Resource{entityLocalMachine()} }
func Process(pid uint64) Resource       { return Resource{entityProcess(pid)} }
func ControlGroup(path string) Resource { return Resource{entityControlGroup(path)} }
func CpuPackage(id uint32) Resource     { return Resource{entityCpuPackage(id)} }
func CpuCore(id uint32) Resource        { return Resource{entityCpuCore(id)} }
func Dram(pkgID uint32) Resource        { return Resource{entityDram(pkgID)} }
func Gpu(busID string) Resource         { return Resource{entityGpu(busID)} }
func CustomResource(kind, id string) Resource { return Resource{entityCustom(kind, id)} }

// Consumer constructors mirror the resource ones (same variant space).
func ConsumerLocalMachine() Consumer            { return Consumer{entityLocalMachine()} }
func ConsumerProcess(pid uint64) Consumer       { return Consumer{entityProcess(pid)} }
func ConsumerControlGroup(path string) Consumer { return Consumer{entityControlGroup(path)} }
func ConsumerCpuPackage(id uint32) Consumer     { return Consumer{entityCpuPackage(id)} }
func ConsumerCpuCore(id uint32) Consumer        { return Consumer{entityCpuCore(id)} }
func ConsumerDram(pkgID uint32) Consumer        { return Consumer{entityDram(pkgID)} }
func ConsumerGpu(busID string) Consumer         { return Consumer{entityGpu(busID)} }
func ConsumerCustom(kind, id string) Consumer   { return Consumer{entityCustom(kind, id)} }
