package spec

func AllBinary() (ret []BinaryOp) {
	for op := BinaryOp(0); op < numBinaryOps; op++ {
		ret = append(ret, op)
	}
	return ret
}

func AllUnary() (ret []UnaryOp) {
	for op := UnaryOp(0); op < numUnaryOps; op++ {
		ret = append(ret, op)
	}
	return ret
}

// AllComparison contains the operations which compare their operands.
func AllComparison() []BinaryOp {
	return []BinaryOp{Eq, NEq, Lt, LEq, Gt, GEq}
}
