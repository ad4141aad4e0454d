package packet

// Client opcodes.
const (
	C_OPCODE_JOIN        byte = 1  // [S name][C faction]
	C_OPCODE_LEAVE       byte = 2  //
	C_OPCODE_TEAM_CHOICE byte = 3  // [C faction]
	C_OPCODE_BUY_ITEM    byte = 4  // [H flavour]
	C_OPCODE_BUY_SPELL   byte = 5  // [C spell]
	C_OPCODE_REBUY       byte = 6  //
	C_OPCODE_RESTART     byte = 7  //
	C_OPCODE_INTENT      byte = 8  // [C action][C pressed]
	C_OPCODE_MOTION      byte = 9  // [D dx][D dy]
	C_OPCODE_CHECKSUM    byte = 10 // [DU step][DU hash]
)

// Server opcodes.
const (
	S_OPCODE_HELLO        byte = 100 // [Q session][C protocol version]
	S_OPCODE_JOINED       byte = 101 // [DU player][Q character]
	S_OPCODE_CHECKSUM     byte = 102 // [DU step][DU hash]
	S_OPCODE_NOTIFICATION byte = 103 // [DU player][S name][C kind][C choice][C faction]
	S_OPCODE_ROUND        byte = 104 // [C state][DU round][DU score metropolis][DU score atlantis][DU score resistance]
)

// ProtocolVersion is sent in the hello packet. Clients with another version
// cannot replicate the simulation.
const ProtocolVersion = 1
