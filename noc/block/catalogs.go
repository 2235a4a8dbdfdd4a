package block

import (
	"github.com/cesanta/nocdbg/noc/register"
	"github.com/cesanta/nocdbg/noc/risc"
)

type (
	cfg = register.ConfigurationRegister
	dbg = register.DebugRegister
)

// Tensix configuration table. Indices are word indices from
// ConfigurationBase.
var tensixConfiguration = register.Catalog{
	"ALU_FORMAT_SPEC_REG_SrcA_val":                   cfg{Index: 1, Mask: 0xf, Shift: 0, DataType: register.DataFormat},
	"ALU_FORMAT_SPEC_REG_SrcA_override":              cfg{Index: 1, Mask: 0x1, Shift: 4, DataType: register.Bool},
	"ALU_FORMAT_SPEC_REG_SrcB_val":                   cfg{Index: 1, Mask: 0xf, Shift: 5, DataType: register.DataFormat},
	"ALU_FORMAT_SPEC_REG_SrcB_override":              cfg{Index: 1, Mask: 0x1, Shift: 9, DataType: register.Bool},
	"ALU_FORMAT_SPEC_REG_Dstacc_val":                 cfg{Index: 1, Mask: 0xf, Shift: 10, DataType: register.DataFormat},
	"ALU_FORMAT_SPEC_REG_Dstacc_override":            cfg{Index: 1, Mask: 0x1, Shift: 14, DataType: register.Bool},
	"ALU_ROUNDING_MODE_Fpu_srnd_en":                  cfg{Index: 1, Mask: 0x1, Shift: 15, DataType: register.Bool},
	"ALU_ROUNDING_MODE_Gasket_srnd_en":               cfg{Index: 1, Mask: 0x1, Shift: 16, DataType: register.Bool},
	"ALU_ROUNDING_MODE_Packer_srnd_en":               cfg{Index: 1, Mask: 0x1, Shift: 17, DataType: register.Bool},
	"ALU_ACC_CTRL_Fp32_enabled":                      cfg{Index: 1, Mask: 0x1, Shift: 29, DataType: register.Bool},
	"ALU_ACC_CTRL_SFPU_Fp32_enabled":                 cfg{Index: 1, Mask: 0x1, Shift: 30, DataType: register.Bool},
	"ALU_ACC_CTRL_INT8_math_enabled":                 cfg{Index: 1, Mask: 0x1, Shift: 31, DataType: register.Bool},
	"UNPACK_CONFIG0_out_data_format":                 cfg{Index: 72, Mask: 0xf, Shift: 0, DataType: register.DataFormat},
	"UNPACK_CONFIG0_throttle_mode":                   cfg{Index: 72, Mask: 0x3, Shift: 4, DataType: register.Int},
	"UNPACK_CONFIG0_context_count":                   cfg{Index: 72, Mask: 0x3, Shift: 6, DataType: register.Int},
	"UNPACK_CONFIG0_haloize_mode":                    cfg{Index: 72, Mask: 0x1, Shift: 8, DataType: register.Bool},
	"UNPACK_CONFIG0_tileize_mode":                    cfg{Index: 72, Mask: 0x1, Shift: 9, DataType: register.Bool},
	"UNPACK_CONFIG0_upsample_rate":                   cfg{Index: 72, Mask: 0x7, Shift: 12, DataType: register.Int},
	"UNPACK_CONFIG0_shift_amount":                    cfg{Index: 72, Mask: 0xffff, Shift: 16, DataType: register.Int},
	"UNPACK_CONFIG1_out_data_format":                 cfg{Index: 76, Mask: 0xf, Shift: 0, DataType: register.DataFormat},
	"UNPACK_CONFIG1_context_count":                   cfg{Index: 76, Mask: 0x3, Shift: 6, DataType: register.Int},
	"THCON_SEC0_REG0_TileDescriptor_in_data_format":  cfg{Index: 64, Mask: 0xf, Shift: 0, DataType: register.DataFormat},
	"THCON_SEC0_REG0_TileDescriptor_x_dim":           cfg{Index: 64, Mask: 0xffff, Shift: 16, DataType: register.Int},
	"THCON_SEC0_REG0_TileDescriptor_y_dim":           cfg{Index: 65, Mask: 0xffff, Shift: 0, DataType: register.Int},
	"THCON_SEC0_REG0_TileDescriptor_z_dim":           cfg{Index: 65, Mask: 0xffff, Shift: 16, DataType: register.Int},
	"THCON_SEC0_REG2_Out_data_format":                cfg{Index: 66, Mask: 0xf, Shift: 0, DataType: register.DataFormat},
	"THCON_SEC0_REG2_Throttle_mode":                  cfg{Index: 66, Mask: 0x3, Shift: 4, DataType: register.Int},
	"THCON_SEC1_REG0_TileDescriptor_in_data_format":  cfg{Index: 112, Mask: 0xf, Shift: 0, DataType: register.DataFormat},
	"PCK0_ADDR_CTRL_XY_REG_0_Xstride":                cfg{Index: 12, Mask: 0xffff, Shift: 0, DataType: register.Int},
	"PCK0_ADDR_CTRL_XY_REG_0_Ystride":                cfg{Index: 12, Mask: 0xffff, Shift: 16, DataType: register.Int},
	"PCK0_ADDR_CTRL_ZW_REG_0_Zstride":                cfg{Index: 13, Mask: 0xffff, Shift: 0, DataType: register.Int},
	"PCK0_ADDR_CTRL_ZW_REG_0_Wstride":                cfg{Index: 13, Mask: 0xffff, Shift: 16, DataType: register.Int},
	"PCK_DEST_RD_CTRL_Read_32b_data":                 cfg{Index: 18, Mask: 0x1, Shift: 0, DataType: register.Bool},
	"PCK_DEST_RD_CTRL_Read_unsigned":                 cfg{Index: 18, Mask: 0x1, Shift: 1, DataType: register.Bool},
	"PCK_EDGE_TILE_FACE_SET_SELECT_select":           cfg{Index: 19, Mask: 0xff, Shift: 0, DataType: register.Hex},
	"DEST_TARGET_REG_CFG_MATH_Offset":                cfg{Index: 60, Mask: 0xfff, Shift: 0, DataType: register.Hex},
	"SRCA_SET_Base":                                  cfg{Index: 20, Mask: 0x3, Shift: 4, DataType: register.Int},
	"SRCB_SET_Base":                                  cfg{Index: 21, Mask: 0x3, Shift: 4, DataType: register.Int},
	"CLR_DVALID_SrcA_Disable":                        cfg{Index: 22, Mask: 0x1, Shift: 0, DataType: register.Bool},
	"CLR_DVALID_SrcB_Disable":                        cfg{Index: 22, Mask: 0x1, Shift: 1, DataType: register.Bool},
	"STACC_RELU_ApplyRelu":                           cfg{Index: 2, Mask: 0xf, Shift: 0, DataType: register.Int},
	"STACC_RELU_ReluThreshold":                       cfg{Index: 2, Mask: 0xffff, Shift: 4, DataType: register.Int},
	"DISABLE_RISC_BP_Disable_main":                   cfg{Index: 2, Mask: 0x1, Shift: 20, DataType: register.Bool},
	"DISABLE_RISC_BP_Disable_trisc":                  cfg{Index: 2, Mask: 0x7, Shift: 21, DataType: register.Hex},
	"DISABLE_RISC_BP_Disable_ncrisc":                 cfg{Index: 2, Mask: 0x1, Shift: 24, DataType: register.Bool},
	"TRISC_RESET_PC_SEC0_PC":                         cfg{Index: 158, Mask: 0xffffffff, Shift: 0, DataType: register.Hex},
	"TRISC_RESET_PC_SEC1_PC":                         cfg{Index: 159, Mask: 0xffffffff, Shift: 0, DataType: register.Hex},
	"TRISC_RESET_PC_SEC2_PC":                         cfg{Index: 160, Mask: 0xffffffff, Shift: 0, DataType: register.Hex},
	"TRISC_RESET_PC_OVERRIDE_Reset_PC_Override_en_0": cfg{Index: 161, Mask: 0x1, Shift: 0, DataType: register.Bool},
	"TRISC_RESET_PC_OVERRIDE_Reset_PC_Override_en_1": cfg{Index: 161, Mask: 0x1, Shift: 1, DataType: register.Bool},
	"TRISC_RESET_PC_OVERRIDE_Reset_PC_Override_en_2": cfg{Index: 161, Mask: 0x1, Shift: 2, DataType: register.Bool},
	"NCRISC_RESET_PC_PC":                             cfg{Index: 162, Mask: 0xffffffff, Shift: 0, DataType: register.Hex},
	"NCRISC_RESET_PC_OVERRIDE_Reset_PC_Override_en":  cfg{Index: 163, Mask: 0x1, Shift: 0, DataType: register.Bool},
	"RISC_PREFETCH_CTRL_Enable_Trisc":                cfg{Index: 164, Mask: 0x7, Shift: 0, DataType: register.Hex},
	"RISC_PREFETCH_CTRL_Enable_Brisc":                cfg{Index: 164, Mask: 0x1, Shift: 3, DataType: register.Bool},
	"RISC_PREFETCH_CTRL_Max_Req_Count":               cfg{Index: 164, Mask: 0xff, Shift: 4, DataType: register.Int},
}

// Tile debug registers. The core debug protocol part comes from risc.
var tileDebug = register.Catalog{
	"RISCV_DEBUG_REG_DBG_BUS_CNTL_REG":         dbg{Offset: 0x54},
	"RISCV_DEBUG_REG_CFGREG_RD_CNTL":           dbg{Offset: 0x58},
	"RISCV_DEBUG_REG_DBG_RD_DATA":              dbg{Offset: 0x5C},
	"RISCV_DEBUG_REG_DBG_ARRAY_RD_EN":          dbg{Offset: 0x60},
	"RISCV_DEBUG_REG_DBG_ARRAY_RD_CMD":         dbg{Offset: 0x64},
	"RISCV_DEBUG_REG_DBG_FEATURE_DISABLE":      dbg{Offset: 0x68},
	"RISCV_DEBUG_REG_CFGREG_RDDATA":            dbg{Offset: 0x78},
	"RISCV_DEBUG_REG_DBG_INSTRN_BUF_CTRL0":     dbg{Offset: 0xA0},
	"RISCV_DEBUG_REG_DBG_INSTRN_BUF_CTRL1":     dbg{Offset: 0xA4},
	"RISCV_DEBUG_REG_DBG_INSTRN_BUF_STATUS":    dbg{Offset: 0xA8},
	"RISCV_DEBUG_REG_WALL_CLOCK_L":             dbg{Offset: 0x1F0},
	"RISCV_DEBUG_REG_WALL_CLOCK_H":             dbg{Offset: 0x1F8},
	"RISCV_DEBUG_REG_TRISC0_RESET_PC":          dbg{Offset: 0x228},
	"RISCV_DEBUG_REG_TRISC1_RESET_PC":          dbg{Offset: 0x22C},
	"RISCV_DEBUG_REG_TRISC2_RESET_PC":          dbg{Offset: 0x230},
	"RISCV_DEBUG_REG_TRISC_RESET_PC_OVERRIDE":  dbg{Offset: 0x234},
	"RISCV_DEBUG_REG_NCRISC_RESET_PC":          dbg{Offset: 0x238},
	"RISCV_DEBUG_REG_NCRISC_RESET_PC_OVERRIDE": dbg{Offset: 0x23C},
}

// NOC register groups, relative to the NOC register base of the plane.
var nocCatalog = register.Catalog{
	"NOC_TARG_ADDR_LO":                  register.NocControlRegister{Offset: register.NocControlGroup + 0x00},
	"NOC_TARG_ADDR_MID":                 register.NocControlRegister{Offset: register.NocControlGroup + 0x04},
	"NOC_TARG_ADDR_HI":                  register.NocControlRegister{Offset: register.NocControlGroup + 0x08},
	"NOC_RET_ADDR_LO":                   register.NocControlRegister{Offset: register.NocControlGroup + 0x0C},
	"NOC_RET_ADDR_MID":                  register.NocControlRegister{Offset: register.NocControlGroup + 0x10},
	"NOC_RET_ADDR_HI":                   register.NocControlRegister{Offset: register.NocControlGroup + 0x14},
	"NOC_PACKET_TAG":                    register.NocControlRegister{Offset: register.NocControlGroup + 0x18},
	"NOC_CTRL":                          register.NocControlRegister{Offset: register.NocControlGroup + 0x1C},
	"NOC_AT_LEN_BE":                     register.NocControlRegister{Offset: register.NocControlGroup + 0x20},
	"NOC_AT_DATA":                       register.NocControlRegister{Offset: register.NocControlGroup + 0x24},
	"NOC_CMD_CTRL":                      register.NocControlRegister{Offset: register.NocControlGroup + 0x28},
	"NOC_NODE_ID":                       register.NocControlRegister{Offset: register.NocControlGroup + 0x2C},
	"NOC_ENDPOINT_ID":                   register.NocControlRegister{Offset: register.NocControlGroup + 0x30},
	"NIU_CFG_0":                         register.NocConfigurationRegister{Offset: register.NocConfigurationGroup + 0x00},
	"ROUTER_CFG_0":                      register.NocConfigurationRegister{Offset: register.NocConfigurationGroup + 0x04},
	"ROUTER_CFG_1":                      register.NocConfigurationRegister{Offset: register.NocConfigurationGroup + 0x08},
	"ROUTER_CFG_2":                      register.NocConfigurationRegister{Offset: register.NocConfigurationGroup + 0x0C},
	"ROUTER_CFG_3":                      register.NocConfigurationRegister{Offset: register.NocConfigurationGroup + 0x10},
	"ROUTER_CFG_4":                      register.NocConfigurationRegister{Offset: register.NocConfigurationGroup + 0x14},
	"NOC_X_ID_TRANSLATE_TABLE_0":        register.NocConfigurationRegister{Offset: register.NocConfigurationGroup + 0x18},
	"NOC_X_ID_TRANSLATE_TABLE_1":        register.NocConfigurationRegister{Offset: register.NocConfigurationGroup + 0x1C},
	"NOC_Y_ID_TRANSLATE_TABLE_0":        register.NocConfigurationRegister{Offset: register.NocConfigurationGroup + 0x28},
	"NOC_Y_ID_TRANSLATE_TABLE_1":        register.NocConfigurationRegister{Offset: register.NocConfigurationGroup + 0x2C},
	"NOC_ID_LOGICAL":                    register.NocConfigurationRegister{Offset: register.NocConfigurationGroup + 0x38},
	"NIU_MST_ATOMIC_RESP_RECEIVED":      register.NocStatusRegister{Offset: register.NocStatusGroup + 0x00},
	"NIU_MST_WR_ACK_RECEIVED":           register.NocStatusRegister{Offset: register.NocStatusGroup + 0x04},
	"NIU_MST_RD_RESP_RECEIVED":          register.NocStatusRegister{Offset: register.NocStatusGroup + 0x08},
	"NIU_MST_RD_DATA_WORD_RECEIVED":     register.NocStatusRegister{Offset: register.NocStatusGroup + 0x0C},
	"NIU_MST_CMD_ACCEPTED":              register.NocStatusRegister{Offset: register.NocStatusGroup + 0x10},
	"NIU_MST_RD_REQ_SENT":               register.NocStatusRegister{Offset: register.NocStatusGroup + 0x14},
	"NIU_MST_NONPOSTED_WR_REQ_SENT":     register.NocStatusRegister{Offset: register.NocStatusGroup + 0x18},
	"NIU_MST_POSTED_WR_REQ_SENT":        register.NocStatusRegister{Offset: register.NocStatusGroup + 0x1C},
	"NIU_MST_REQS_OUTSTANDING_ID":       register.NocStatusRegister{Offset: register.NocStatusGroup + 0x40},
	"NIU_SLV_ATOMIC_RESP_SENT":          register.NocStatusRegister{Offset: register.NocStatusGroup + 0x80},
	"NIU_SLV_WR_ACK_SENT":               register.NocStatusRegister{Offset: register.NocStatusGroup + 0x84},
	"NIU_SLV_RD_RESP_SENT":              register.NocStatusRegister{Offset: register.NocStatusGroup + 0x88},
	"NIU_SLV_RD_DATA_WORD_SENT":         register.NocStatusRegister{Offset: register.NocStatusGroup + 0x8C},
	"NIU_SLV_REQ_ACCEPTED":              register.NocStatusRegister{Offset: register.NocStatusGroup + 0x90},
	"NIU_SLV_RD_REQ_RECEIVED":           register.NocStatusRegister{Offset: register.NocStatusGroup + 0x94},
	"NIU_SLV_NONPOSTED_WR_REQ_RECEIVED": register.NocStatusRegister{Offset: register.NocStatusGroup + 0x98},
	"NIU_SLV_POSTED_WR_REQ_RECEIVED":    register.NocStatusRegister{Offset: register.NocStatusGroup + 0x9C},
}

var (
	tensixCatalog = register.Merge(tensixConfiguration, tileDebug, risc.DebugRegisters, nocCatalog)
	ethCatalog    = register.Merge(tileDebug, risc.DebugRegisters, nocCatalog)
)

// NocNodeIDOffset is where a router reports its own coordinates:
// x in bits 0..5, y in bits 6..11.
const NocNodeIDOffset = register.NocControlGroup + 0x2C
