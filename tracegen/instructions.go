package tracegen

import (
	"fmt"

	"github.com/jetstrace/jets/internal/rng"
)

// RISC-V instruction subset used by the workload. isMem marks loads and
// stores, which take the Memory pipeline stage.
type instrTemplate struct {
	mnemonic string
	asm      string
	isMem    bool
}

var instrTemplates = []instrTemplate{
	{"ADDI", "addi", false},
	{"ADD", "add", false},
	{"SUB", "sub", false},
	{"MV", "mv", false},
	{"LI", "li", false},
	{"LW", "lw", true},
	{"SW", "sw", true},
	{"BEQ", "beq", false},
	{"JAL", "jal", false},
	{"JALR", "jalr", false},
	{"AND", "and", false},
	{"OR", "or", false},
	{"XOR", "xor", false},
	{"SLL", "sll", false},
	{"SRL", "srl", false},
}

var registers = []string{
	"zero", "ra", "sp", "gp", "tp", "t0", "t1", "t2",
	"s0", "s1", "a0", "a1", "a2", "a3", "a4", "a5",
	"a6", "a7", "s2", "s3", "s4", "s5", "s6", "s7",
	"s8", "s9", "s10", "s11", "t3", "t4", "t5", "t6",
}

// pickInstruction draws a template and its operands from gen, returning the
// template and the rendered disassembly string. The draw order is part of
// the deterministic stream and must not change.
func pickInstruction(gen *rng.Rand) (instrTemplate, string) {
	tpl := instrTemplates[gen.IntN(0, len(instrTemplates))]
	rd := registers[gen.IntN(0, len(registers))]
	rs1 := registers[gen.IntN(0, len(registers))]

	var disasm string
	switch tpl.mnemonic {
	case "MV":
		disasm = fmt.Sprintf("%s  %s, %s", tpl.asm, rd, rs1)
	case "LI":
		imm := gen.Int32N(-2048, 2048)
		disasm = fmt.Sprintf("%s  %s, %d", tpl.asm, rd, imm)
	case "LW", "SW":
		offset := gen.Int32N(-100, 100)
		disasm = fmt.Sprintf("%s  %s, %d(%s)", tpl.asm, rd, offset, rs1)
	case "BEQ":
		rs2 := registers[gen.IntN(0, len(registers))]
		offset := gen.Int32N(-50, 50) * 4
		disasm = fmt.Sprintf("%s  %s, %s, %d", tpl.asm, rd, rs2, offset)
	case "JAL":
		offset := gen.Int32N(-100, 100) * 4
		disasm = fmt.Sprintf("%s  %s, %d", tpl.asm, rd, offset)
	case "JALR":
		offset := gen.Int32N(-100, 100)
		disasm = fmt.Sprintf("%s  %s, %d(%s)", tpl.asm, rd, offset, rs1)
	case "ADDI":
		imm := gen.Int32N(-100, 100)
		disasm = fmt.Sprintf("%s  %s, %s, %d", tpl.asm, rd, rs1, imm)
	default:
		rs2 := registers[gen.IntN(0, len(registers))]
		disasm = fmt.Sprintf("%s  %s, %s, %s", tpl.asm, rd, rs1, rs2)
	}
	return tpl, disasm
}

// Pipeline stage table. Each stage emits one event on the instruction's
// record at the cycle it begins.
type stage struct {
	name        string
	description string
}

var (
	stageFetch1    = stage{"F1", "Fetch 1. Instruction fetch request, PC generation"}
	stageFetch2    = stage{"F2", "Fetch 2. Instruction cache access and retrieval"}
	stageDecode    = stage{"D", "Decode. Instruction decode and branch prediction"}
	stageRename    = stage{"RN", "Rename. Register renaming to eliminate false dependencies"}
	stageDispatch  = stage{"DS", "Dispatch. Dispatch instructions to reservation stations/issue queues"}
	stageIssue     = stage{"IS", "Issue. Issue instructions to execution units when operands are ready"}
	stageRegRead   = stage{"RR", "Register Read. Read physical registers from register file"}
	stageExecute   = stage{"EX", "Execute. Execute operation in ALU/FPU/other functional units"}
	stageMemory    = stage{"M", "Memory. Memory access for load/store instructions"}
	stageWriteback = stage{"WB", "Writeback. Write results back to physical register file"}
	stageCommit    = stage{"C", "Commit/Retire. Commit instructions in program order and update architectural state"}
)
