package gast

// kindTableFor returns the grammar-node-type → normalized-kind table for
// a language tag. Anything absent falls through to KindOther with the
// original tag preserved.
func kindTableFor(lang string) map[string]Kind {
	switch lang {
	case "javascript", "typescript", "tsx":
		return jsTable
	case "python":
		return pythonTable
	case "go":
		return goTable
	case "java":
		return javaTable
	case "csharp":
		return csharpTable
	case "php":
		return phpTable
	case "ruby":
		return rubyTable
	case "rust":
		return rustTable
	case "cpp":
		return cppTable
	default:
		return map[string]Kind{}
	}
}

var jsTable = map[string]Kind{
	"program":                        KindFile,
	"function_declaration":           KindFunction,
	"generator_function_declaration": KindFunction,
	"function_expression":            KindLambda,
	"arrow_function":                 KindLambda,
	"class_declaration":              KindClass,
	"method_definition":              KindMethod,
	"call_expression":                KindCall,
	"new_expression":                 KindCall,
	"import_statement":               KindImport,
	"export_statement":               KindExport,
	"decorator":                      KindDecoratorApp,
	"try_statement":                  KindTryCatch,
	"catch_clause":                   KindCatchClause,
	"finally_clause":                 KindFinallyClause,
	"assignment_expression":          KindAssignment,
	"augmented_assignment_expression": KindAssignment,
	"variable_declarator":            KindVarDecl,
	"if_statement":                   KindIf,
	"for_statement":                  KindLoop,
	"for_in_statement":               KindLoop,
	"while_statement":                KindLoop,
	"do_statement":                   KindLoop,
	"switch_statement":               KindSwitch,
	"switch_case":                    KindCase,
	"return_statement":               KindReturn,
	"throw_statement":                KindThrow,
	"string":                         KindStringLiteral,
	"template_string":                KindStringLiteral,
	"number":                         KindNumberLiteral,
	"true":                           KindLiteral,
	"false":                          KindLiteral,
	"null":                           KindLiteral,
	"undefined":                      KindLiteral,
	"identifier":                     KindIdentifier,
	"object":                         KindObjectExpr,
	"array":                          KindArrayExpr,
	"member_expression":              KindMemberAccess,
	"subscript_expression":           KindIndexAccess,
	"binary_expression":              KindBinaryOp,
	"unary_expression":               KindUnaryOp,
	"ternary_expression":             KindTernary,
	"await_expression":               KindAwait,
	"yield_expression":               KindYield,
	"spread_element":                 KindSpread,
	"formal_parameters":              KindParameter,
	"type_annotation":                KindTypeAnnotation,
	"comment":                        KindComment,
	"statement_block":                KindBlock,
}

var pythonTable = map[string]Kind{
	"module":                 KindFile,
	"function_definition":    KindFunction,
	"class_definition":       KindClass,
	"call":                   KindCall,
	"import_statement":       KindImport,
	"import_from_statement":  KindImport,
	"decorator":              KindDecoratorApp,
	"try_statement":          KindTryCatch,
	"except_clause":          KindCatchClause,
	"finally_clause":         KindFinallyClause,
	"assignment":             KindAssignment,
	"augmented_assignment":   KindAssignment,
	"if_statement":           KindIf,
	"for_statement":          KindLoop,
	"while_statement":        KindLoop,
	"match_statement":        KindSwitch,
	"case_clause":            KindCase,
	"return_statement":       KindReturn,
	"raise_statement":        KindThrow,
	"string":                 KindStringLiteral,
	"integer":                KindNumberLiteral,
	"float":                  KindNumberLiteral,
	"true":                   KindLiteral,
	"false":                  KindLiteral,
	"none":                   KindLiteral,
	"identifier":             KindIdentifier,
	"dictionary":             KindObjectExpr,
	"list":                   KindArrayExpr,
	"attribute":              KindMemberAccess,
	"subscript":              KindIndexAccess,
	"binary_operator":        KindBinaryOp,
	"boolean_operator":       KindBinaryOp,
	"not_operator":           KindUnaryOp,
	"unary_operator":         KindUnaryOp,
	"conditional_expression": KindTernary,
	"lambda":                 KindLambda,
	"await":                  KindAwait,
	"yield":                  KindYield,
	"list_splat":             KindSpread,
	"dictionary_splat":       KindSpread,
	"parameters":             KindParameter,
	"type":                   KindTypeAnnotation,
	"comment":                KindComment,
	"block":                  KindBlock,
}

var goTable = map[string]Kind{
	"source_file":                KindFile,
	"function_declaration":       KindFunction,
	"method_declaration":         KindMethod,
	"func_literal":               KindLambda,
	"type_declaration":           KindClass,
	"call_expression":            KindCall,
	"import_declaration":         KindImport,
	"import_spec":                KindImport,
	"assignment_statement":       KindAssignment,
	"short_var_declaration":      KindVarDecl,
	"var_declaration":            KindVarDecl,
	"const_declaration":          KindVarDecl,
	"if_statement":               KindIf,
	"for_statement":              KindLoop,
	"expression_switch_statement": KindSwitch,
	"type_switch_statement":      KindSwitch,
	"select_statement":           KindSwitch,
	"expression_case":            KindCase,
	"type_case":                  KindCase,
	"communication_case":         KindCase,
	"return_statement":           KindReturn,
	"interpreted_string_literal": KindStringLiteral,
	"raw_string_literal":         KindStringLiteral,
	"int_literal":                KindNumberLiteral,
	"float_literal":              KindNumberLiteral,
	"true":                       KindLiteral,
	"false":                      KindLiteral,
	"nil":                        KindLiteral,
	"identifier":                 KindIdentifier,
	"composite_literal":          KindObjectExpr,
	"selector_expression":        KindMemberAccess,
	"index_expression":           KindIndexAccess,
	"binary_expression":          KindBinaryOp,
	"unary_expression":           KindUnaryOp,
	"parameter_list":             KindParameter,
	"type_identifier":            KindTypeAnnotation,
	"comment":                    KindComment,
	"block":                      KindBlock,
}

var javaTable = map[string]Kind{
	"program":                     KindFile,
	"method_declaration":          KindMethod,
	"constructor_declaration":     KindMethod,
	"class_declaration":           KindClass,
	"interface_declaration":       KindClass,
	"enum_declaration":            KindClass,
	"record_declaration":          KindClass,
	"method_invocation":           KindCall,
	"object_creation_expression":  KindCall,
	"import_declaration":          KindImport,
	"annotation":                  KindDecoratorApp,
	"marker_annotation":           KindDecoratorApp,
	"try_statement":               KindTryCatch,
	"catch_clause":                KindCatchClause,
	"finally_clause":              KindFinallyClause,
	"assignment_expression":       KindAssignment,
	"local_variable_declaration":  KindVarDecl,
	"if_statement":                KindIf,
	"for_statement":               KindLoop,
	"enhanced_for_statement":      KindLoop,
	"while_statement":             KindLoop,
	"do_statement":                KindLoop,
	"switch_expression":           KindSwitch,
	"switch_block_statement_group": KindCase,
	"return_statement":            KindReturn,
	"throw_statement":             KindThrow,
	"string_literal":              KindStringLiteral,
	"decimal_integer_literal":     KindNumberLiteral,
	"decimal_floating_point_literal": KindNumberLiteral,
	"true":                        KindLiteral,
	"false":                       KindLiteral,
	"null_literal":                KindLiteral,
	"identifier":                  KindIdentifier,
	"array_initializer":           KindArrayExpr,
	"field_access":                KindMemberAccess,
	"array_access":                KindIndexAccess,
	"binary_expression":           KindBinaryOp,
	"unary_expression":            KindUnaryOp,
	"ternary_expression":          KindTernary,
	"lambda_expression":           KindLambda,
	"formal_parameters":           KindParameter,
	"type_annotation":             KindTypeAnnotation,
	"line_comment":                KindComment,
	"block_comment":               KindComment,
	"block":                       KindBlock,
}

var csharpTable = map[string]Kind{
	"compilation_unit":                KindFile,
	"method_declaration":              KindMethod,
	"constructor_declaration":         KindMethod,
	"local_function_statement":        KindFunction,
	"class_declaration":               KindClass,
	"interface_declaration":           KindClass,
	"struct_declaration":              KindClass,
	"enum_declaration":                KindClass,
	"record_declaration":              KindClass,
	"invocation_expression":           KindCall,
	"object_creation_expression":      KindCall,
	"using_directive":                 KindImport,
	"attribute_list":                  KindDecoratorApp,
	"try_statement":                   KindTryCatch,
	"catch_clause":                    KindCatchClause,
	"finally_clause":                  KindFinallyClause,
	"assignment_expression":           KindAssignment,
	"local_declaration_statement":     KindVarDecl,
	"variable_declarator":             KindVarDecl,
	"if_statement":                    KindIf,
	"for_statement":                   KindLoop,
	"foreach_statement":               KindLoop,
	"while_statement":                 KindLoop,
	"do_statement":                    KindLoop,
	"switch_statement":                KindSwitch,
	"switch_section":                  KindCase,
	"return_statement":                KindReturn,
	"throw_statement":                 KindThrow,
	"string_literal":                  KindStringLiteral,
	"verbatim_string_literal":         KindStringLiteral,
	"interpolated_string_expression":  KindStringLiteral,
	"integer_literal":                 KindNumberLiteral,
	"real_literal":                    KindNumberLiteral,
	"boolean_literal":                 KindLiteral,
	"null_literal":                    KindLiteral,
	"identifier":                      KindIdentifier,
	"anonymous_object_creation_expression": KindObjectExpr,
	"initializer_expression":          KindArrayExpr,
	"member_access_expression":        KindMemberAccess,
	"element_access_expression":       KindIndexAccess,
	"binary_expression":               KindBinaryOp,
	"prefix_unary_expression":         KindUnaryOp,
	"conditional_expression":          KindTernary,
	"lambda_expression":               KindLambda,
	"await_expression":                KindAwait,
	"parameter_list":                  KindParameter,
	"comment":                         KindComment,
	"block":                           KindBlock,
}

var phpTable = map[string]Kind{
	"program":                       KindFile,
	"function_definition":           KindFunction,
	"method_declaration":            KindMethod,
	"class_declaration":             KindClass,
	"interface_declaration":         KindClass,
	"trait_declaration":             KindClass,
	"enum_declaration":              KindClass,
	"function_call_expression":      KindCall,
	"member_call_expression":        KindCall,
	"scoped_call_expression":        KindCall,
	"object_creation_expression":    KindCall,
	"namespace_use_declaration":     KindImport,
	"require_expression":            KindImport,
	"require_once_expression":       KindImport,
	"include_expression":            KindImport,
	"attribute_list":                KindDecoratorApp,
	"try_statement":                 KindTryCatch,
	"catch_clause":                  KindCatchClause,
	"finally_clause":                KindFinallyClause,
	"assignment_expression":         KindAssignment,
	"if_statement":                  KindIf,
	"for_statement":                 KindLoop,
	"foreach_statement":             KindLoop,
	"while_statement":               KindLoop,
	"do_statement":                  KindLoop,
	"switch_statement":              KindSwitch,
	"case_statement":                KindCase,
	"return_statement":              KindReturn,
	"throw_expression":              KindThrow,
	"string":                        KindStringLiteral,
	"encapsed_string":               KindStringLiteral,
	"integer":                       KindNumberLiteral,
	"float":                         KindNumberLiteral,
	"boolean":                       KindLiteral,
	"null":                          KindLiteral,
	"variable_name":                 KindIdentifier,
	"name":                          KindIdentifier,
	"array_creation_expression":     KindArrayExpr,
	"member_access_expression":      KindMemberAccess,
	"subscript_expression":          KindIndexAccess,
	"binary_expression":             KindBinaryOp,
	"unary_op_expression":           KindUnaryOp,
	"conditional_expression":        KindTernary,
	"anonymous_function_creation_expression": KindLambda,
	"arrow_function":                KindLambda,
	"formal_parameters":             KindParameter,
	"comment":                       KindComment,
	"compound_statement":            KindBlock,
}

var rubyTable = map[string]Kind{
	"program":           KindFile,
	"method":            KindFunction,
	"singleton_method":  KindMethod,
	"class":             KindClass,
	"module":            KindClass,
	"call":              KindCall,
	"begin":             KindTryCatch,
	"rescue":            KindCatchClause,
	"ensure":            KindFinallyClause,
	"assignment":        KindAssignment,
	"operator_assignment": KindAssignment,
	"if":                KindIf,
	"unless":            KindIf,
	"while":             KindLoop,
	"until":             KindLoop,
	"for":               KindLoop,
	"case":              KindSwitch,
	"when":              KindCase,
	"return":            KindReturn,
	"string":            KindStringLiteral,
	"integer":           KindNumberLiteral,
	"float":             KindNumberLiteral,
	"true":              KindLiteral,
	"false":             KindLiteral,
	"nil":               KindLiteral,
	"identifier":        KindIdentifier,
	"constant":          KindIdentifier,
	"hash":              KindObjectExpr,
	"array":             KindArrayExpr,
	"element_reference": KindIndexAccess,
	"binary":            KindBinaryOp,
	"unary":             KindUnaryOp,
	"conditional":       KindTernary,
	"lambda":            KindLambda,
	"do_block":          KindLambda,
	"block":             KindLambda,
	"method_parameters": KindParameter,
	"comment":           KindComment,
	"body_statement":    KindBlock,
}

var rustTable = map[string]Kind{
	"source_file":          KindFile,
	"function_item":        KindFunction,
	"impl_item":            KindClass,
	"struct_item":          KindClass,
	"enum_item":            KindClass,
	"trait_item":           KindClass,
	"call_expression":      KindCall,
	"macro_invocation":     KindCall,
	"use_declaration":      KindImport,
	"attribute_item":       KindDecoratorApp,
	"match_expression":     KindSwitch,
	"match_arm":            KindCase,
	"if_expression":        KindIf,
	"loop_expression":      KindLoop,
	"while_expression":     KindLoop,
	"for_expression":       KindLoop,
	"return_expression":    KindReturn,
	"assignment_expression": KindAssignment,
	"let_declaration":      KindVarDecl,
	"string_literal":       KindStringLiteral,
	"raw_string_literal":   KindStringLiteral,
	"integer_literal":      KindNumberLiteral,
	"float_literal":        KindNumberLiteral,
	"boolean_literal":      KindLiteral,
	"identifier":           KindIdentifier,
	"struct_expression":    KindObjectExpr,
	"array_expression":     KindArrayExpr,
	"field_expression":     KindMemberAccess,
	"index_expression":     KindIndexAccess,
	"binary_expression":    KindBinaryOp,
	"unary_expression":     KindUnaryOp,
	"closure_expression":   KindLambda,
	"await_expression":     KindAwait,
	"parameters":           KindParameter,
	"line_comment":         KindComment,
	"block_comment":        KindComment,
	"block":                KindBlock,
}

var cppTable = map[string]Kind{
	"translation_unit":      KindFile,
	"function_definition":   KindFunction,
	"class_specifier":       KindClass,
	"struct_specifier":      KindClass,
	"enum_specifier":        KindClass,
	"call_expression":       KindCall,
	"preproc_include":       KindImport,
	"try_statement":         KindTryCatch,
	"catch_clause":          KindCatchClause,
	"assignment_expression": KindAssignment,
	"declaration":           KindVarDecl,
	"if_statement":          KindIf,
	"for_statement":         KindLoop,
	"for_range_loop":        KindLoop,
	"while_statement":       KindLoop,
	"do_statement":          KindLoop,
	"switch_statement":      KindSwitch,
	"case_statement":        KindCase,
	"return_statement":      KindReturn,
	"throw_statement":       KindThrow,
	"string_literal":        KindStringLiteral,
	"raw_string_literal":    KindStringLiteral,
	"number_literal":        KindNumberLiteral,
	"true":                  KindLiteral,
	"false":                 KindLiteral,
	"identifier":            KindIdentifier,
	"initializer_list":      KindArrayExpr,
	"field_expression":      KindMemberAccess,
	"subscript_expression":  KindIndexAccess,
	"binary_expression":     KindBinaryOp,
	"unary_expression":      KindUnaryOp,
	"conditional_expression": KindTernary,
	"lambda_expression":     KindLambda,
	"parameter_list":        KindParameter,
	"comment":               KindComment,
	"compound_statement":    KindBlock,
}
